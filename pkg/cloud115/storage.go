package cloud115

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go115/cloud115/pkg/api"
	"github.com/go115/cloud115/pkg/protocol"
	"github.com/go115/cloud115/pkg/upload"
)

// UploadTicket is the outcome of RequestUpload and RequestUploadData.
type UploadTicket = upload.Ticket

// StorageService manages files and directories.
type StorageService struct {
	session    *protocol.Session
	negotiator *upload.Negotiator
}

// Space returns the total and used storage in bytes.
func (s *StorageService) Space(ctx context.Context) (total, used int64, err error) {
	info, err := protocol.Execute[api.SpaceInfo](ctx, s.session, api.SpaceSpec{})
	if err != nil {
		return 0, 0, err
	}
	return info.Total, info.Used, nil
}

// List walks the entries of dirID ("0" is the root) in remote order.
func (s *StorageService) List(ctx context.Context, dirID string) *Iterator[File] {
	it := protocol.Paginate[api.FileRecord](ctx, s.session, api.NewListFilesSpec(dirID), protocol.OffsetStrategy{})
	return mapIterator(it, fileFromRecord)
}

// Move moves files into targetDirID. No ids is a no-op.
func (s *StorageService) Move(ctx context.Context, targetDirID string, fileIDs ...string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	_, err := protocol.Execute[struct{}](ctx, s.session, api.MoveSpec{TargetDirID: targetDirID, FileIDs: fileIDs})
	return err
}

// Rename renames a file or directory.
func (s *StorageService) Rename(ctx context.Context, fileID, newName string) error {
	_, err := protocol.Execute[struct{}](ctx, s.session, api.RenameSpec{FileID: fileID, NewName: newName})
	return err
}

// Delete moves files to the recycle bin. No ids is a no-op.
func (s *StorageService) Delete(ctx context.Context, fileIDs ...string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	_, err := protocol.Execute[struct{}](ctx, s.session, api.DeleteFilesSpec{FileIDs: fileIDs})
	return err
}

// MakeDir creates name inside parentID.
func (s *StorageService) MakeDir(ctx context.Context, parentID, name string) (*File, error) {
	if parentID == "" {
		parentID = api.RootDirID
	}
	rec, err := protocol.Execute[api.DirRecord](ctx, s.session, api.MakeDirSpec{ParentID: parentID, Name: name})
	if err != nil {
		return nil, err
	}
	dirName := rec.Name
	if dirName == "" {
		dirName = name
	}
	return &File{
		ID:       string(rec.ID),
		ParentID: parentID,
		Name:     dirName,
		IsDir:    true,
	}, nil
}

// RequestDownload returns a ticket for the file behind pickcode, or nil when
// the remote offers no download URL (directories, for instance).
func (s *StorageService) RequestDownload(ctx context.Context, pickcode string) (*DownloadTicket, error) {
	info, err := protocol.Execute[api.DownloadInfo](ctx, s.session, api.DownloadSpec{PickCode: pickcode})
	if err != nil {
		return nil, err
	}
	if info.URL == "" {
		return nil, nil
	}
	cookie, err := s.session.CookieHeader(info.URL)
	if err != nil {
		return nil, fmt.Errorf("cloud115: export cookies: %w", err)
	}
	headers := http.Header{}
	headers.Set("User-Agent", s.session.UserAgent())
	headers.Set("Cookie", cookie)
	return &DownloadTicket{
		URL:      info.URL,
		FileName: info.FileName,
		FileSize: int64(info.FileSize),
		Headers:  headers,
	}, nil
}

// RequestUpload negotiates the upload of the local file at path into dirID.
// A missing or unreadable file is a UsageError. The file is closed on
// return; reopen it for the transfer.
func (s *StorageService) RequestUpload(ctx context.Context, dirID, path string) (*UploadTicket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &protocol.UsageError{Op: "request upload", Err: err}
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, &protocol.UsageError{Op: "request upload", Err: err}
	}
	if stat.IsDir() {
		return nil, &protocol.UsageError{Op: "request upload", Err: errors.New(path + " is a directory")}
	}
	return s.negotiator.Negotiate(ctx, dirID, filepath.Base(path), stat.Size(), f)
}

// RequestUploadData negotiates the upload of r as name inside dirID. r must
// implement io.Seeker; it is left at offset 0 for the transfer.
func (s *StorageService) RequestUploadData(ctx context.Context, dirID, name string, r io.Reader) (*UploadTicket, error) {
	return s.negotiator.Negotiate(ctx, dirID, name, -1, r)
}

func fileFromRecord(r api.FileRecord) File {
	f := File{
		Name:       r.Name,
		PickCode:   r.PickCode,
		IsDir:      r.IsDir(),
		CreateTime: unixTime(int64(r.CreateTime)),
		ModifyTime: unixTime(int64(r.ModifyTime)),
	}
	if f.IsDir {
		f.ID = string(r.CategoryID)
		f.ParentID = string(r.ParentID)
		return f
	}
	f.ID = string(r.FileID)
	f.ParentID = string(r.CategoryID)
	f.Size = int64(r.Size)
	f.SHA1 = r.SHA1
	return f
}
