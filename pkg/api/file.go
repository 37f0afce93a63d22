package api

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/pkg/protocol"
)

// DefaultListLimit is the page size requested by ListFilesSpec.
const DefaultListLimit = 100

// ListFilesSpec lists the entries of a directory by 0-based offset. Walk it
// with protocol.OffsetStrategy.
type ListFilesSpec struct {
	DirID  string
	Limit  int
	offset int
}

// NewListFilesSpec lists dirID from its first entry.
func NewListFilesSpec(dirID string) *ListFilesSpec {
	if strings.TrimSpace(dirID) == "" {
		dirID = RootDirID
	}
	return &ListFilesSpec{DirID: dirID, Limit: DefaultListLimit}
}

// SetPosition implements protocol.PagedSpec.
func (s *ListFilesSpec) SetPosition(offset int) {
	s.offset = offset
}

// Request implements protocol.Spec.
func (s *ListFilesSpec) Request() (*protocol.Request, error) {
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return protocol.Get(urlWebAPI+"/files", url.Values{
		"aid":      {"1"},
		"cid":      {s.DirID},
		"offset":   {strconv.Itoa(s.offset)},
		"limit":    {strconv.Itoa(limit)},
		"show_dir": {"1"},
		"o":        {"user_ptime"},
		"asc":      {"0"},
		"natsort":  {"1"},
		"format":   {"json"},
	}), nil
}

// Decode implements protocol.Spec. The entries live under "data" next to
// the count and offset, so the whole body is decoded.
func (s *ListFilesSpec) Decode(env *envelope.Envelope) (protocol.Page[FileRecord], error) {
	var body struct {
		Count  envelope.Int64  `json:"count"`
		Offset *envelope.Int64 `json:"offset"`
		Data   []FileRecord    `json:"data"`
	}
	if err := env.DecodeRaw(&body); err != nil {
		return protocol.Page[FileRecord]{}, err
	}
	position := s.offset
	if body.Offset != nil {
		position = int(*body.Offset)
	}
	return protocol.Page[FileRecord]{
		Items:    body.Data,
		Position: position,
		Total:    int(body.Count),
	}, nil
}

// MoveSpec moves files into another directory.
type MoveSpec struct {
	TargetDirID string
	FileIDs     []string
}

// Request implements protocol.Spec.
func (s MoveSpec) Request() (*protocol.Request, error) {
	if len(s.FileIDs) == 0 {
		return nil, &protocol.UsageError{Op: "move files", Err: errors.New("no file ids")}
	}
	form := url.Values{"pid": {s.TargetDirID}}
	for i, id := range s.FileIDs {
		form.Set("fid["+strconv.Itoa(i)+"]", id)
	}
	return protocol.PostForm(urlWebAPI+"/files/move", nil, form), nil
}

// Decode implements protocol.Spec.
func (MoveSpec) Decode(*envelope.Envelope) (struct{}, error) {
	return struct{}{}, nil
}

// RenameSpec renames a single file or directory.
type RenameSpec struct {
	FileID  string
	NewName string
}

// Request implements protocol.Spec.
func (s RenameSpec) Request() (*protocol.Request, error) {
	if strings.TrimSpace(s.FileID) == "" {
		return nil, &protocol.UsageError{Op: "rename", Err: errors.New("file id is required")}
	}
	if strings.TrimSpace(s.NewName) == "" {
		return nil, &protocol.UsageError{Op: "rename", Err: errors.New("new name is required")}
	}
	return protocol.PostForm(urlWebAPI+"/files/batch_rename", nil, url.Values{
		"files_new_name[" + s.FileID + "]": {s.NewName},
	}), nil
}

// Decode implements protocol.Spec.
func (RenameSpec) Decode(*envelope.Envelope) (struct{}, error) {
	return struct{}{}, nil
}

// DeleteFilesSpec moves files to the recycle bin.
type DeleteFilesSpec struct {
	FileIDs []string
}

// Request implements protocol.Spec.
func (s DeleteFilesSpec) Request() (*protocol.Request, error) {
	if len(s.FileIDs) == 0 {
		return nil, &protocol.UsageError{Op: "delete files", Err: errors.New("no file ids")}
	}
	form := url.Values{"ignore_warn": {"1"}}
	for i, id := range s.FileIDs {
		form.Set("fid["+strconv.Itoa(i)+"]", id)
	}
	return protocol.PostForm(urlWebAPI+"/rb/delete", nil, form), nil
}

// Decode implements protocol.Spec.
func (DeleteFilesSpec) Decode(*envelope.Envelope) (struct{}, error) {
	return struct{}{}, nil
}

// DownloadSpec requests a signed download URL for a pickcode.
type DownloadSpec struct {
	PickCode string
}

// Request implements protocol.Spec.
func (s DownloadSpec) Request() (*protocol.Request, error) {
	if strings.TrimSpace(s.PickCode) == "" {
		return nil, &protocol.UsageError{Op: "download", Err: errors.New("pickcode is required")}
	}
	return protocol.Get(urlWebAPI+"/files/download", url.Values{"pickcode": {s.PickCode}}), nil
}

// Decode implements protocol.Spec. A response without a URL decodes to a
// zero DownloadInfo.
func (DownloadSpec) Decode(env *envelope.Envelope) (DownloadInfo, error) {
	var info DownloadInfo
	if err := env.Decode(&info); err != nil {
		return DownloadInfo{}, err
	}
	return info, nil
}

// MakeDirSpec creates a directory.
type MakeDirSpec struct {
	ParentID string
	Name     string
}

// Request implements protocol.Spec.
func (s MakeDirSpec) Request() (*protocol.Request, error) {
	if strings.TrimSpace(s.Name) == "" {
		return nil, &protocol.UsageError{Op: "make dir", Err: errors.New("name is required")}
	}
	parent := s.ParentID
	if strings.TrimSpace(parent) == "" {
		parent = RootDirID
	}
	return protocol.PostForm(urlWebAPI+"/files/add", nil, url.Values{
		"pid":   {parent},
		"cname": {s.Name},
	}), nil
}

// Decode implements protocol.Spec.
func (MakeDirSpec) Decode(env *envelope.Envelope) (DirRecord, error) {
	var rec DirRecord
	if err := env.Decode(&rec); err != nil {
		return DirRecord{}, err
	}
	return rec, nil
}

// SpaceSpec queries storage capacity.
type SpaceSpec struct{}

// Request implements protocol.Spec.
func (SpaceSpec) Request() (*protocol.Request, error) {
	return protocol.Get(urlWebAPI+"/files/index_info", nil), nil
}

// Decode implements protocol.Spec.
func (SpaceSpec) Decode(env *envelope.Envelope) (SpaceInfo, error) {
	type sized struct {
		Size envelope.Int64 `json:"size"`
	}
	var body struct {
		SpaceInfo struct {
			AllTotal sized `json:"all_total"`
			AllUse   sized `json:"all_use"`
		} `json:"space_info"`
	}
	if err := env.Decode(&body); err != nil {
		return SpaceInfo{}, err
	}
	return SpaceInfo{
		Total: int64(body.SpaceInfo.AllTotal.Size),
		Used:  int64(body.SpaceInfo.AllUse.Size),
	}, nil
}
