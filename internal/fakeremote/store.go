package fakeremote

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const rootID = "0"

type entry struct {
	id       string
	parentID string
	name     string
	isDir    bool
	content  []byte
	sha1     string
	pickCode string
	created  int64
	modified int64
}

type task struct {
	infoHash string
	name     string
	url      string
	size     int64
	status   int
	percent  float64
	fileID   string
	dirID    string
	added    int64
	updated  int64
}

type pendingUpload struct {
	dirID string
	name  string
	sha1  string
	size  int64
}

// store is guarded by Server.mu.
type store struct {
	nextID  int
	entries []*entry
	tasks   []*task
	pending map[string]pendingUpload
	signs   map[string]string
	clock   func() time.Time
}

func newStore() *store {
	return &store{
		nextID:  1000,
		pending: make(map[string]pendingUpload),
		signs:   make(map[string]string),
		clock:   time.Now,
	}
}

func (st *store) newID() string {
	st.nextID++
	return strconv.Itoa(st.nextID)
}

func (st *store) find(id string) *entry {
	for _, e := range st.entries {
		if e.id == id {
			return e
		}
	}
	return nil
}

func (st *store) findByPickCode(pc string) *entry {
	for _, e := range st.entries {
		if e.pickCode == pc {
			return e
		}
	}
	return nil
}

func (st *store) findBySHA1(sum string) *entry {
	for _, e := range st.entries {
		if !e.isDir && e.sha1 == sum {
			return e
		}
	}
	return nil
}

func (st *store) isDir(id string) bool {
	if id == rootID {
		return true
	}
	e := st.find(id)
	return e != nil && e.isDir
}

func (st *store) children(dirID string) []*entry {
	var out []*entry
	for _, e := range st.entries {
		if e.parentID == dirID {
			out = append(out, e)
		}
	}
	return out
}

func (st *store) nameTaken(dirID, name string) bool {
	for _, e := range st.children(dirID) {
		if e.name == name {
			return true
		}
	}
	return false
}

func (st *store) mkdir(parentID, name string) (*entry, error) {
	if !st.isDir(parentID) {
		return nil, fmt.Errorf("parent %s is not a directory", parentID)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if st.nameTaken(parentID, name) {
		return nil, fmt.Errorf("name %q already exists", name)
	}
	now := st.clock().Unix()
	e := &entry{
		id:       st.newID(),
		parentID: parentID,
		name:     name,
		isDir:    true,
		pickCode: newPickCode(),
		created:  now,
		modified: now,
	}
	st.entries = append(st.entries, e)
	return e, nil
}

func (st *store) addFile(dirID, name string, content []byte) (*entry, error) {
	if !st.isDir(dirID) {
		return nil, fmt.Errorf("parent %s is not a directory", dirID)
	}
	sum := sha1.Sum(content)
	now := st.clock().Unix()
	e := &entry{
		id:       st.newID(),
		parentID: dirID,
		name:     name,
		content:  append([]byte(nil), content...),
		sha1:     strings.ToUpper(hex.EncodeToString(sum[:])),
		pickCode: newPickCode(),
		created:  now,
		modified: now,
	}
	st.entries = append(st.entries, e)
	return e, nil
}

func (st *store) used() int64 {
	var total int64
	for _, e := range st.entries {
		total += int64(len(e.content))
	}
	return total
}

// remove deletes id and, for directories, everything below it.
func (st *store) remove(id string) {
	doomed := map[string]bool{id: true}
	for changed := true; changed; {
		changed = false
		for _, e := range st.entries {
			if doomed[e.parentID] && !doomed[e.id] {
				doomed[e.id] = true
				changed = true
			}
		}
	}
	kept := st.entries[:0]
	for _, e := range st.entries {
		if !doomed[e.id] {
			kept = append(kept, e)
		}
	}
	st.entries = kept
}

func (st *store) findTask(infoHash string) *task {
	for _, t := range st.tasks {
		if t.infoHash == infoHash {
			return t
		}
	}
	return nil
}

func (st *store) addTask(rawURL, dirID string) (*task, bool) {
	sum := sha1.Sum([]byte(rawURL))
	hash := hex.EncodeToString(sum[:])
	if existing := st.findTask(hash); existing != nil {
		return existing, false
	}
	now := st.clock().Unix()
	name := rawURL
	if idx := strings.LastIndex(rawURL, "/"); idx >= 0 && idx < len(rawURL)-1 {
		name = rawURL[idx+1:]
	}
	t := &task{
		infoHash: hash,
		name:     name,
		url:      rawURL,
		status:   1,
		dirID:    dirID,
		added:    now,
		updated:  now,
	}
	st.tasks = append(st.tasks, t)
	return t, true
}

func (st *store) removeTasks(match func(*task) bool) {
	kept := st.tasks[:0]
	for _, t := range st.tasks {
		if !match(t) {
			kept = append(kept, t)
		}
	}
	st.tasks = kept
}

func newPickCode() string {
	return newToken()[:18]
}
