package fakeremote

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
)

func (s *Server) handleFileList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dirID := q.Get("cid")
	if dirID == "" {
		dirID = rootID
	}
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > s.filePageSize {
		limit = s.filePageSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.offsets = append(s.offsets, offset)

	if !s.store.isDir(dirID) {
		fail(w, 20130827, "directory not found")
		return
	}
	children := s.store.children(dirID)
	data := make([]map[string]any, 0, limit)
	for i := offset; i < len(children) && i < offset+limit; i++ {
		data = append(data, fileRecord(children[i]))
	}
	writeJSON(w, map[string]any{
		"state":  true,
		"cid":    dirID,
		"count":  len(children),
		"offset": offset,
		"limit":  limit,
		"data":   data,
	})
}

func fileRecord(e *entry) map[string]any {
	rec := map[string]any{
		"n":  e.name,
		"pc": e.pickCode,
		"tp": strconv.FormatInt(e.created, 10),
		"te": strconv.FormatInt(e.modified, 10),
	}
	if e.isDir {
		rec["cid"] = e.id
		rec["pid"] = e.parentID
		return rec
	}
	rec["fid"] = e.id
	rec["cid"] = e.parentID
	rec["s"] = len(e.content)
	rec["sha"] = e.sha1
	return rec
}

func (s *Server) handleSpace(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	used := s.store.used()
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"state": true,
		"data": map[string]any{
			"space_info": map[string]any{
				"all_total":  map[string]any{"size": DefaultQuota},
				"all_remain": map[string]any{"size": DefaultQuota - used},
				"all_use":    map[string]any{"size": used},
			},
		},
	})
}

func (s *Server) handleMakeDir(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.mkdir(r.PostForm.Get("pid"), r.PostForm.Get("cname"))
	if err != nil {
		fail(w, 20004, err.Error())
		return
	}
	writeJSON(w, map[string]any{"state": true, "cid": e.id, "cname": e.name, "file_id": e.id})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	target := r.PostForm.Get("pid")
	ids := indexed(r.PostForm, "fid")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.store.isDir(target) {
		fail(w, 20130827, "target directory not found")
		return
	}
	for _, id := range ids {
		if s.store.find(id) == nil {
			fail(w, 20130827, "file "+id+" not found")
			return
		}
	}
	for _, id := range ids {
		s.store.find(id).parentID = target
	}
	writeJSON(w, map[string]any{"state": true})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	renamed := 0
	for key, values := range r.PostForm {
		id, ok := strings.CutPrefix(key, "files_new_name[")
		if !ok || len(values) == 0 {
			continue
		}
		e := s.store.find(strings.TrimSuffix(id, "]"))
		if e == nil {
			fail(w, 20130827, "file not found")
			return
		}
		e.name = values[0]
		e.modified = s.store.clock().Unix()
		renamed++
	}
	if renamed == 0 {
		fail(w, 1001, "nothing to rename")
		return
	}
	writeJSON(w, map[string]any{"state": true})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ids := indexed(r.PostForm, "fid")

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.store.remove(id)
	}
	writeJSON(w, map[string]any{"state": true})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	pc := r.URL.Query().Get("pickcode")

	s.mu.Lock()
	e := s.store.findByPickCode(pc)
	var rec Entry
	if e != nil {
		rec = e.public()
	}
	s.mu.Unlock()

	if e == nil {
		fail(w, 50003, "file not found")
		return
	}
	if rec.IsDir {
		writeJSON(w, map[string]any{"state": true, "pickcode": pc})
		return
	}
	writeJSON(w, map[string]any{
		"state":     true,
		"file_url":  baseURL(r) + "/dl/" + url.PathEscape(pc),
		"file_name": rec.Name,
		"file_size": strconv.FormatInt(rec.Size, 10),
		"pickcode":  pc,
		"file_id":   rec.ID,
	})
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.UserAgent() == "" {
		http.Error(w, "user agent required", http.StatusForbidden)
		return
	}
	s.mu.Lock()
	e := s.store.findByPickCode(mux.Vars(r)["pickcode"])
	found := e != nil && !e.isDir
	var content []byte
	if found {
		content = append([]byte(nil), e.content...)
	}
	s.mu.Unlock()

	if !found {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	_, _ = w.Write(content)
}

// indexed collects name[0], name[1], ... until the first gap.
func indexed(form url.Values, name string) []string {
	var out []string
	for i := 0; ; i++ {
		v, ok := form[name+"["+strconv.Itoa(i)+"]"]
		if !ok || len(v) == 0 {
			return out
		}
		out = append(out, v[0])
	}
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
