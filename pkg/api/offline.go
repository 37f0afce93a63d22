package api

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/pkg/protocol"
)

func lixianQuery(action string) url.Values {
	return url.Values{"ct": {"lixian"}, "ac": {action}}
}

// ListTasksSpec lists offline tasks one 1-based page at a time. Walk it with
// protocol.PageStrategy.
type ListTasksSpec struct {
	page int
}

// NewListTasksSpec starts at the first page.
func NewListTasksSpec() *ListTasksSpec {
	return &ListTasksSpec{page: 1}
}

// SetPosition implements protocol.PagedSpec.
func (s *ListTasksSpec) SetPosition(page int) {
	s.page = page
}

// Request implements protocol.Spec.
func (s *ListTasksSpec) Request() (*protocol.Request, error) {
	page := s.page
	if page < 1 {
		page = 1
	}
	return protocol.PostForm(urlLixian, lixianQuery("task_lists"), url.Values{
		"page": {strconv.Itoa(page)},
	}), nil
}

// Decode implements protocol.Spec.
func (s *ListTasksSpec) Decode(env *envelope.Envelope) (protocol.Page[TaskRecord], error) {
	var body struct {
		Page      envelope.Int64 `json:"page"`
		PageCount envelope.Int64 `json:"page_count"`
		Tasks     []TaskRecord   `json:"tasks"`
	}
	if err := env.Decode(&body); err != nil {
		return protocol.Page[TaskRecord]{}, err
	}
	page := int(body.Page)
	if page == 0 {
		page = s.page
	}
	return protocol.Page[TaskRecord]{
		Items:    body.Tasks,
		Position: page,
		Total:    int(body.PageCount),
	}, nil
}

// AddURLsSpec creates one offline task per URL (http, ftp, ed2k or magnet).
type AddURLsSpec struct {
	AppVersion string
	UserID     string
	DirID      string
	URLs       []string
}

// Request implements protocol.Spec.
func (s AddURLsSpec) Request() (*protocol.Request, error) {
	if len(s.URLs) == 0 {
		return nil, &protocol.UsageError{Op: "add task urls", Err: errors.New("no urls")}
	}
	form := url.Values{
		"app_ver": {s.AppVersion},
		"uid":     {s.UserID},
	}
	if s.DirID != "" {
		form.Set("wp_path_id", s.DirID)
	}
	for i, u := range s.URLs {
		form.Set("url["+strconv.Itoa(i)+"]", u)
	}
	return protocol.PostForm(urlLixian, lixianQuery("add_task_urls"), form), nil
}

// Decode implements protocol.Spec.
func (s AddURLsSpec) Decode(env *envelope.Envelope) ([]AddTaskResult, error) {
	var body struct {
		Result []AddTaskResult `json:"result"`
	}
	if err := env.Decode(&body); err != nil {
		return nil, err
	}
	return body.Result, nil
}

// DeleteTasksSpec removes offline tasks by info hash.
type DeleteTasksSpec struct {
	InfoHashes []string
	// DeleteFiles also removes the downloaded files.
	DeleteFiles bool
}

// Request implements protocol.Spec.
func (s DeleteTasksSpec) Request() (*protocol.Request, error) {
	if len(s.InfoHashes) == 0 {
		return nil, &protocol.UsageError{Op: "delete tasks", Err: errors.New("no task ids")}
	}
	form := url.Values{"flag": {"0"}}
	if s.DeleteFiles {
		form.Set("flag", "1")
	}
	for i, h := range s.InfoHashes {
		form.Set("hash["+strconv.Itoa(i)+"]", h)
	}
	return protocol.PostForm(urlLixian, lixianQuery("task_del"), form), nil
}

// Decode implements protocol.Spec.
func (DeleteTasksSpec) Decode(*envelope.Envelope) (struct{}, error) {
	return struct{}{}, nil
}

// ClearTasksSpec removes every task matching Flag.
type ClearTasksSpec struct {
	Flag int
}

// Request implements protocol.Spec.
func (s ClearTasksSpec) Request() (*protocol.Request, error) {
	return protocol.PostForm(urlLixian, lixianQuery("task_clear"), url.Values{
		"flag": {strconv.Itoa(s.Flag)},
	}), nil
}

// Decode implements protocol.Spec.
func (ClearTasksSpec) Decode(*envelope.Envelope) (struct{}, error) {
	return struct{}{}, nil
}
