package cloud115

import (
	"context"

	"github.com/go115/cloud115/pkg/api"
	"github.com/go115/cloud115/pkg/protocol"
)

// OfflineService manages offline download tasks.
type OfflineService struct {
	session    *protocol.Session
	appVersion string
	userID     string
}

// List walks every task, one remote page per advance.
func (s *OfflineService) List(ctx context.Context) *Iterator[Task] {
	it := protocol.Paginate[api.TaskRecord](ctx, s.session, api.NewListTasksSpec(), protocol.PageStrategy{})
	return mapIterator(it, taskFromRecord)
}

// AddURL creates one task per URL (http, ftp, ed2k or magnet). URLs the
// remote refused come back with Status TaskFailed. No URLs is a no-op.
func (s *OfflineService) AddURL(ctx context.Context, urls ...string) ([]Task, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	results, err := protocol.Execute[[]api.AddTaskResult](ctx, s.session, api.AddURLsSpec{
		AppVersion: s.appVersion,
		UserID:     s.userID,
		URLs:       urls,
	})
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(results))
	for _, r := range results {
		status := TaskRunning
		if !r.State {
			status = TaskFailed
		}
		tasks = append(tasks, Task{
			InfoHash: r.InfoHash,
			Name:     r.Name,
			URL:      r.URL,
			DirID:    string(r.DirID),
			Status:   status,
		})
	}
	return tasks, nil
}

// Delete removes tasks by info hash, keeping downloaded files. No ids is a
// no-op.
func (s *OfflineService) Delete(ctx context.Context, infoHashes ...string) error {
	if len(infoHashes) == 0 {
		return nil
	}
	_, err := protocol.Execute[struct{}](ctx, s.session, api.DeleteTasksSpec{InfoHashes: infoHashes})
	return err
}

// Clear removes every task matching flag.
func (s *OfflineService) Clear(ctx context.Context, flag ClearFlag) error {
	_, err := protocol.Execute[struct{}](ctx, s.session, api.ClearTasksSpec{Flag: int(flag)})
	return err
}

func taskFromRecord(r api.TaskRecord) Task {
	fileID := string(r.FileID)
	if fileID == "" {
		fileID = string(r.DeleteFileID)
	}
	return Task{
		InfoHash:   r.InfoHash,
		Name:       r.Name,
		Size:       int64(r.Size),
		Status:     taskStatus(int64(r.Status)),
		Percent:    r.PercentDone,
		URL:        r.URL,
		FileID:     fileID,
		DirID:      string(r.DirID),
		CreateTime: unixTime(int64(r.AddTime)),
		UpdateTime: unixTime(int64(r.LastUpdate)),
	}
}
