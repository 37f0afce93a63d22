package api

import (
	"github.com/go115/cloud115/internal/envelope"
)

// TaskRecord is one offline task as reported by the task listing.
type TaskRecord struct {
	InfoHash     string          `json:"info_hash"`
	Name         string          `json:"name"`
	Size         envelope.Int64  `json:"size"`
	Status       envelope.Int64  `json:"status"`
	PercentDone  float64         `json:"percentDone"`
	URL          string          `json:"url"`
	FileID       envelope.String `json:"file_id"`
	DeleteFileID envelope.String `json:"delete_file_id"`
	DirID        envelope.String `json:"wp_path_id"`
	AddTime      envelope.Int64  `json:"add_time"`
	LastUpdate   envelope.Int64  `json:"last_update"`
}

// AddTaskResult is the per-URL outcome of adding offline tasks.
type AddTaskResult struct {
	State    bool            `json:"state"`
	ErrCode  envelope.Int64  `json:"errcode"`
	ErrMsg   string          `json:"error_msg"`
	InfoHash string          `json:"info_hash"`
	Name     string          `json:"name"`
	URL      string          `json:"url"`
	DirID    envelope.String `json:"wp_path_id"`
}

// FileRecord is one entry of a directory listing. Directories carry no fid;
// for them cid is their own id and pid the parent's.
type FileRecord struct {
	FileID     envelope.String `json:"fid"`
	CategoryID envelope.String `json:"cid"`
	ParentID   envelope.String `json:"pid"`
	Name       string          `json:"n"`
	Size       envelope.Int64  `json:"s"`
	SHA1       string          `json:"sha"`
	PickCode   string          `json:"pc"`
	CreateTime envelope.Int64  `json:"tp"`
	ModifyTime envelope.Int64  `json:"te"`
}

// IsDir reports whether the record describes a directory.
func (r FileRecord) IsDir() bool {
	return r.FileID == ""
}

// SpaceInfo reports storage capacity in bytes.
type SpaceInfo struct {
	Total int64
	Used  int64
}

// DirRecord is the result of creating a directory.
type DirRecord struct {
	ID   envelope.String `json:"cid"`
	Name string          `json:"cname"`
}

// DownloadInfo describes a signed download URL. URL is empty when the remote
// did not provide one.
type DownloadInfo struct {
	URL      string          `json:"file_url"`
	FileName string          `json:"file_name"`
	FileSize envelope.Int64  `json:"file_size"`
	PickCode string          `json:"pickcode"`
	FileID   envelope.String `json:"file_id"`
}

// UserInfo identifies the logged in account.
type UserInfo struct {
	UserID   envelope.String `json:"user_id"`
	UserName string          `json:"user_name"`
}

// UploadInfo carries the identifiers the upload signatures are derived from.
type UploadInfo struct {
	UserID    envelope.String `json:"user_id"`
	UserKey   string          `json:"userkey"`
	SizeLimit envelope.Int64  `json:"size_limit"`
}
