package cloud115

import (
	"errors"
	"net/http"
	"time"
)

var (
	// ErrNotLoggedIn is returned when the remote does not accept the
	// credential.
	ErrNotLoggedIn = errors.New("cloud115: not logged in")
	// ErrIncompleteCredential is returned when UID, CID or SEID is missing.
	ErrIncompleteCredential = errors.New("cloud115: credential requires UID, CID and SEID")
)

// Credential holds the cookies of a logged in browser session.
type Credential struct {
	UID  string
	CID  string
	SEID string
	KID  string
}

// User identifies the logged in account.
type User struct {
	ID   string
	Name string
}

// TaskStatus is the coarse state of an offline task.
type TaskStatus int

const (
	TaskUnknown TaskStatus = iota
	TaskRunning
	TaskComplete
	TaskFailed
)

func (s TaskStatus) String() string {
	switch s {
	case TaskRunning:
		return "running"
	case TaskComplete:
		return "complete"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func taskStatus(raw int64) TaskStatus {
	switch raw {
	case 0, 1:
		return TaskRunning
	case 2:
		return TaskComplete
	case -1:
		return TaskFailed
	default:
		return TaskUnknown
	}
}

// Task is an offline download task.
type Task struct {
	InfoHash string
	Name     string
	Size     int64
	Status   TaskStatus
	// Percent is the download progress in [0, 100].
	Percent    float64
	URL        string
	FileID     string
	DirID      string
	CreateTime time.Time
	UpdateTime time.Time
}

// ClearFlag selects the tasks removed by OfflineService.Clear.
type ClearFlag int

const (
	ClearDone ClearFlag = iota
	ClearAll
	ClearFailed
	ClearRunning
	ClearDoneAndDelete
	ClearAllAndDelete
)

// File is an entry of a directory listing. Directories have IsDir set and
// no SHA1 or Size.
type File struct {
	ID         string
	ParentID   string
	Name       string
	Size       int64
	SHA1       string
	PickCode   string
	IsDir      bool
	CreateTime time.Time
	ModifyTime time.Time
}

// DownloadTicket carries a signed URL and the headers required to fetch it.
type DownloadTicket struct {
	URL      string
	FileName string
	FileSize int64
	Headers  http.Header
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
