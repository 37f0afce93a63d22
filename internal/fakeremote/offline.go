package fakeremote

import (
	"net/http"
	"strconv"
)

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"state": true,
		"data": map[string]any{
			"user_id":   DefaultUserID,
			"user_name": DefaultUserName,
		},
	})
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	page, _ := strconv.Atoi(r.PostForm.Get("page"))
	if page < 1 {
		page = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)

	total := len(s.store.tasks)
	pageCount := (total + s.taskPageSize - 1) / s.taskPageSize
	tasks := make([]map[string]any, 0, s.taskPageSize)
	for i := (page - 1) * s.taskPageSize; i < total && i < page*s.taskPageSize; i++ {
		tasks = append(tasks, taskRecord(s.store.tasks[i]))
	}
	writeJSON(w, map[string]any{
		"state":      true,
		"page":       page,
		"page_count": pageCount,
		"count":      total,
		"tasks":      tasks,
	})
}

func taskRecord(t *task) map[string]any {
	return map[string]any{
		"info_hash":      t.infoHash,
		"name":           t.name,
		"size":           t.size,
		"status":         t.status,
		"percentDone":    t.percent,
		"url":            t.url,
		"file_id":        t.fileID,
		"delete_file_id": t.fileID,
		"wp_path_id":     t.dirID,
		"add_time":       t.added,
		"last_update":    t.updated,
	}
}

func (s *Server) handleTaskAdd(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("uid") != DefaultUserID {
		fail(w, 10010, "uid mismatch")
		return
	}
	urls := indexed(r.PostForm, "url")
	if len(urls) == 0 {
		fail(w, 10001, "no url")
		return
	}
	dirID := r.PostForm.Get("wp_path_id")

	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]map[string]any, 0, len(urls))
	for _, u := range urls {
		t, created := s.store.addTask(u, dirID)
		res := map[string]any{
			"state":      created,
			"info_hash":  t.infoHash,
			"name":       t.name,
			"url":        u,
			"wp_path_id": t.dirID,
		}
		if !created {
			res["errcode"] = 10008
			res["error_msg"] = "task already exists"
		}
		results = append(results, res)
	}
	writeJSON(w, map[string]any{"state": true, "result": results})
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hashes := make(map[string]bool)
	for _, h := range indexed(r.PostForm, "hash") {
		hashes[h] = true
	}
	withFiles := r.PostForm.Get("flag") == "1"

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.removeTasks(func(t *task) bool {
		if !hashes[t.infoHash] {
			return false
		}
		if withFiles && t.fileID != "" {
			s.store.remove(t.fileID)
		}
		return true
	})
	writeJSON(w, map[string]any{"state": true})
}

func (s *Server) handleTaskClear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flag, err := strconv.Atoi(r.PostForm.Get("flag"))
	if err != nil || flag < 0 || flag > 5 {
		fail(w, 10002, "invalid flag")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.removeTasks(func(t *task) bool {
		switch flag {
		case 0, 4:
			return t.status == 2
		case 2:
			return t.status == -1
		case 3:
			return t.status == 0 || t.status == 1
		default:
			return true
		}
	})
	writeJSON(w, map[string]any{"state": true})
}
