package fakeremote

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry describes a stored file or directory.
type Entry struct {
	ID       string
	ParentID string
	Name     string
	IsDir    bool
	Size     int64
	SHA1     string
	PickCode string
}

// Seed is the JSON document accepted by LoadSeed.
type Seed struct {
	Dirs  []string   `json:"dirs"`
	Files []SeedFile `json:"files"`
	Tasks []SeedTask `json:"tasks"`
}

// SeedFile is a file to create. Path is slash separated from the root;
// missing directories are created. Base64 takes precedence over Content.
type SeedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Base64  string `json:"base64"`
}

// SeedTask is an offline task to create.
type SeedTask struct {
	URL     string  `json:"url"`
	Status  int     `json:"status"`
	Percent float64 `json:"percent"`
}

// LoadSeed reads a seed document from path.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("fakeremote: read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("fakeremote: decode seed: %w", err)
	}
	return seed, nil
}

// Apply creates everything the seed describes.
func (s *Server) Apply(seed Seed) error {
	for _, dir := range seed.Dirs {
		if _, err := s.MakeDirAll(dir); err != nil {
			return err
		}
	}
	for _, f := range seed.Files {
		content := []byte(f.Content)
		if f.Base64 != "" {
			decoded, err := base64.StdEncoding.DecodeString(f.Base64)
			if err != nil {
				return fmt.Errorf("fakeremote: decode %s: %w", f.Path, err)
			}
			content = decoded
		}
		dir, name := splitPath(f.Path)
		dirID, err := s.MakeDirAll(dir)
		if err != nil {
			return err
		}
		if _, err := s.AddFile(dirID, name, content); err != nil {
			return err
		}
	}
	for _, t := range seed.Tasks {
		s.AddTask(t.URL, t.Status, t.Percent)
	}
	return nil
}

// MakeDirAll creates the slash separated path below the root, reusing
// existing directories, and returns the id of the last one.
func (s *Server) MakeDirAll(path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := rootID
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next := ""
		for _, e := range s.store.children(current) {
			if e.isDir && e.name == part {
				next = e.id
				break
			}
		}
		if next == "" {
			e, err := s.store.mkdir(current, part)
			if err != nil {
				return "", fmt.Errorf("fakeremote: %w", err)
			}
			next = e.id
		}
		current = next
	}
	return current, nil
}

// AddFile stores content as name inside dirID.
func (s *Server) AddFile(dirID, name string, content []byte) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.addFile(dirID, name, content)
	if err != nil {
		return Entry{}, fmt.Errorf("fakeremote: %w", err)
	}
	return e.public(), nil
}

// AddTask creates an offline task and returns its info hash.
func (s *Server) AddTask(rawURL string, status int, percent float64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, _ := s.store.addTask(rawURL, "")
	t.status = status
	t.percent = percent
	return t.infoHash
}

// Lookup returns the entry named name inside dirID.
func (s *Server) Lookup(dirID, name string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.store.children(dirID) {
		if e.name == name {
			return e.public(), true
		}
	}
	return Entry{}, false
}

// Content returns a copy of a stored file's bytes.
func (s *Server) Content(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.store.find(id)
	if e == nil || e.isDir {
		return nil, false
	}
	return append([]byte(nil), e.content...), true
}

// TaskCount returns the number of offline tasks.
func (s *Server) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.store.tasks)
}

func (e *entry) public() Entry {
	return Entry{
		ID:       e.id,
		ParentID: e.parentID,
		Name:     e.name,
		IsDir:    e.isDir,
		Size:     int64(len(e.content)),
		SHA1:     e.sha1,
		PickCode: e.pickCode,
	}
}

func splitPath(path string) (string, string) {
	path = strings.Trim(path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return "", path
}
