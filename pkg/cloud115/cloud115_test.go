package cloud115_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/go115/cloud115/internal/config"
	"github.com/go115/cloud115/internal/fakeremote"
	"github.com/go115/cloud115/pkg/cloud115"
	"github.com/go115/cloud115/pkg/protocol"
)

var testCredential = cloud115.Credential{
	UID:  fakeremote.DefaultUID,
	CID:  fakeremote.DefaultCID,
	SEID: fakeremote.DefaultSEID,
}

type AgentSuite struct {
	suite.Suite
	ctx    context.Context
	fake   *fakeremote.Server
	server *httptest.Server
	agent  *cloud115.Agent
}

func TestAgentSuite(t *testing.T) {
	suite.Run(t, new(AgentSuite))
}

func (s *AgentSuite) SetupTest() {
	s.ctx = context.Background()
	s.fake = fakeremote.New(
		fakeremote.WithFilePageSize(50),
		fakeremote.WithTaskPageSize(3),
		fakeremote.WithCookieRotation(),
	)
	s.server = httptest.NewServer(s.fake)

	agent, err := cloud115.Login(s.ctx, testCredential, s.sessionOption())
	s.Require().NoError(err)
	s.agent = agent
}

func (s *AgentSuite) TearDownTest() {
	s.server.Close()
}

func (s *AgentSuite) sessionOption() cloud115.Option {
	return cloud115.WithSessionOptions(protocol.WithBaseURL(s.server.URL))
}

func (s *AgentSuite) TestLoginLoadsUser() {
	s.Equal(cloud115.User{ID: fakeremote.DefaultUserID, Name: fakeremote.DefaultUserName}, s.agent.User())
	s.Equal(1, s.fake.Calls("user.nav"))
	s.Equal(1, s.fake.Calls("user.uploadinfo"))
}

func (s *AgentSuite) TestLoginRejectsUnknownCredential() {
	cred := testCredential
	cred.UID = "someone-else"

	_, err := cloud115.Login(s.ctx, cred, s.sessionOption())
	s.Require().Error(err)
	s.ErrorIs(err, cloud115.ErrNotLoggedIn)
	s.True(protocol.IsRemote(err))
}

func (s *AgentSuite) TestLoginRequiresCookies() {
	before := s.fake.Calls("user.nav")

	_, err := cloud115.Login(s.ctx, cloud115.Credential{UID: "u", CID: "c"}, s.sessionOption())
	s.Require().Error(err)
	s.True(protocol.IsUsage(err))
	s.ErrorIs(err, cloud115.ErrIncompleteCredential)
	s.Equal(before, s.fake.Calls("user.nav"))
}

func (s *AgentSuite) TestCredentialFollowsRotation() {
	_, _, err := s.agent.Storage().Space(s.ctx)
	s.Require().NoError(err)

	cred, err := s.agent.Credential()
	s.Require().NoError(err)
	s.Equal(fakeremote.DefaultUID, cred.UID)
	s.Equal(s.fake.SEID(), cred.SEID)
	s.NotEqual(fakeremote.DefaultSEID, cred.SEID)
}

func (s *AgentSuite) TestListFilesWalksEveryPage() {
	for i := 0; i < 125; i++ {
		_, err := s.fake.AddFile("0", fmt.Sprintf("file-%03d.txt", i), []byte(fmt.Sprintf("content %d", i)))
		s.Require().NoError(err)
	}

	files, err := s.agent.Storage().List(s.ctx, "0").Collect()
	s.Require().NoError(err)

	s.Require().Len(files, 125)
	for i, f := range files {
		s.Equal(fmt.Sprintf("file-%03d.txt", i), f.Name)
		s.False(f.IsDir)
		s.Equal("0", f.ParentID)
		s.NotEmpty(f.SHA1)
		s.NotEmpty(f.PickCode)
	}
	s.Equal([]int{0, 50, 100}, s.fake.ListOffsets())
	s.Equal(3, s.fake.Calls("files.list"))
}

func (s *AgentSuite) TestListFilesIsLazy() {
	for i := 0; i < 120; i++ {
		_, err := s.fake.AddFile("0", fmt.Sprintf("f%d", i), nil)
		s.Require().NoError(err)
	}

	it := s.agent.Storage().List(s.ctx, "0")
	s.Equal(0, s.fake.Calls("files.list"))
	for i := 0; i < 50; i++ {
		s.Require().True(it.Next())
	}
	s.Equal(1, s.fake.Calls("files.list"))
	s.Require().True(it.Next())
	s.Equal(2, s.fake.Calls("files.list"))
}

func (s *AgentSuite) TestListUnknownDirectoryFails() {
	files, err := s.agent.Storage().List(s.ctx, "424242").Collect()
	s.Empty(files)
	s.True(protocol.IsRemote(err))
}

func (s *AgentSuite) TestMakeDirMoveRenameDelete() {
	storage := s.agent.Storage()

	dir, err := storage.MakeDir(s.ctx, "0", "docs")
	s.Require().NoError(err)
	s.True(dir.IsDir)
	s.Equal("docs", dir.Name)
	s.Equal("0", dir.ParentID)

	_, err = storage.MakeDir(s.ctx, "0", "docs")
	s.True(protocol.IsRemote(err))

	file, err := s.fake.AddFile("0", "a.txt", []byte("hello"))
	s.Require().NoError(err)

	s.Require().NoError(storage.Move(s.ctx, dir.ID, file.ID))
	moved, ok := s.fake.Lookup(dir.ID, "a.txt")
	s.Require().True(ok)
	s.Equal(file.ID, moved.ID)

	s.Require().NoError(storage.Rename(s.ctx, file.ID, "b.txt"))
	_, ok = s.fake.Lookup(dir.ID, "b.txt")
	s.True(ok)

	entries, err := storage.List(s.ctx, "0").Collect()
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.True(entries[0].IsDir)
	s.Equal(dir.ID, entries[0].ID)

	s.Require().NoError(storage.Delete(s.ctx, dir.ID))
	_, ok = s.fake.Lookup(dir.ID, "b.txt")
	s.False(ok)
	_, ok = s.fake.Lookup("0", "docs")
	s.False(ok)
}

func (s *AgentSuite) TestBulkOperationsWithoutIDsAreNoOps() {
	storage := s.agent.Storage()
	s.NoError(storage.Move(s.ctx, "0"))
	s.NoError(storage.Delete(s.ctx))
	s.NoError(s.agent.Offline().Delete(s.ctx))
	tasks, err := s.agent.Offline().AddURL(s.ctx)
	s.NoError(err)
	s.Empty(tasks)

	s.Equal(0, s.fake.Calls("files.move"))
	s.Equal(0, s.fake.Calls("files.delete"))
	s.Equal(0, s.fake.Calls("tasks.delete"))
	s.Equal(0, s.fake.Calls("tasks.add"))
}

func (s *AgentSuite) TestRenameRequiresName() {
	err := s.agent.Storage().Rename(s.ctx, "1", "")
	s.True(protocol.IsUsage(err))
	s.Equal(0, s.fake.Calls("files.rename"))
}

func (s *AgentSuite) TestSpace() {
	_, err := s.fake.AddFile("0", "a.bin", make([]byte, 1000))
	s.Require().NoError(err)

	total, used, err := s.agent.Storage().Space(s.ctx)
	s.Require().NoError(err)
	s.Equal(fakeremote.DefaultQuota, total)
	s.EqualValues(1000, used)
}

func (s *AgentSuite) TestRequestDownload() {
	content := []byte("downloadable bytes")
	file, err := s.fake.AddFile("0", "d.txt", content)
	s.Require().NoError(err)

	ticket, err := s.agent.Storage().RequestDownload(s.ctx, file.PickCode)
	s.Require().NoError(err)
	s.Require().NotNil(ticket)
	s.Equal("d.txt", ticket.FileName)
	s.EqualValues(len(content), ticket.FileSize)
	s.Equal(protocol.DefaultUserAgent, ticket.Headers.Get("User-Agent"))
	s.Contains(ticket.Headers.Get("Cookie"), "UID="+fakeremote.DefaultUID)
	s.Contains(ticket.Headers.Get("Cookie"), "; ")

	req, err := http.NewRequest(http.MethodGet, ticket.URL, nil)
	s.Require().NoError(err)
	req.Header = ticket.Headers.Clone()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
	got, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Equal(content, got)
}

func (s *AgentSuite) TestRequestDownloadWithoutURL() {
	_, err := s.fake.MakeDirAll("folder")
	s.Require().NoError(err)
	dir, ok := s.fake.Lookup("0", "folder")
	s.Require().True(ok)

	ticket, err := s.agent.Storage().RequestDownload(s.ctx, dir.PickCode)
	s.NoError(err)
	s.Nil(ticket)
}

func (s *AgentSuite) TestRequestDownloadUnknownPickCode() {
	ticket, err := s.agent.Storage().RequestDownload(s.ctx, "missing")
	s.Nil(ticket)
	s.True(protocol.IsRemote(err))
}

func (s *AgentSuite) TestRequestUploadDataAlreadyStored() {
	content := []byte("the same bytes twice")
	dirID, err := s.fake.MakeDirAll("elsewhere")
	s.Require().NoError(err)
	_, err = s.fake.AddFile(dirID, "original.txt", content)
	s.Require().NoError(err)

	ticket, err := s.agent.Storage().RequestUploadData(s.ctx, "0", "copy.txt", bytes.NewReader(content))
	s.Require().NoError(err)

	s.True(ticket.Done)
	s.Nil(ticket.Credential)
	s.NotEmpty(ticket.PickCode)
	s.Equal(0, s.fake.Calls("upload.token"))
	stored, ok := s.fake.Lookup("0", "copy.txt")
	s.Require().True(ok)
	s.Equal(ticket.FileID, stored.ID)
}

func (s *AgentSuite) TestRequestUploadDataNeedsTransfer() {
	ticket, err := s.agent.Storage().RequestUploadData(s.ctx, "0", "new.txt", strings.NewReader("fresh content"))
	s.Require().NoError(err)

	s.False(ticket.Done)
	s.Require().NotNil(ticket.Credential)
	s.Equal(fakeremote.Bucket, ticket.Credential.Bucket)
	s.NotEmpty(ticket.Credential.Object)
	s.Equal(s.server.URL, ticket.Credential.Endpoint)
	s.NotEmpty(ticket.Credential.SecurityToken)
	s.NotEmpty(ticket.Credential.Callback)
	s.Equal(1, s.fake.Calls("upload.token"))
}

func (s *AgentSuite) TestRequestUploadDataRejectsNonSeekable() {
	_, err := s.agent.Storage().RequestUploadData(s.ctx, "0", "x", io.LimitReader(strings.NewReader("abc"), 3))
	s.Require().Error(err)
	s.ErrorIs(err, protocol.ErrNotSeekable)
	s.Equal(0, s.fake.Calls("upload.init"))
}

func (s *AgentSuite) TestRequestUploadFromDisk() {
	path := filepath.Join(s.T().TempDir(), "local.bin")
	s.Require().NoError(os.WriteFile(path, []byte("local file"), 0o600))

	ticket, err := s.agent.Storage().RequestUpload(s.ctx, "0", path)
	s.Require().NoError(err)
	s.Equal("local.bin", ticket.Name)
	s.EqualValues(10, ticket.Size)
	s.True(ticket.NeedsTransfer())
}

func (s *AgentSuite) TestRequestUploadMissingFile() {
	_, err := s.agent.Storage().RequestUpload(s.ctx, "0", filepath.Join(s.T().TempDir(), "absent"))
	s.Require().Error(err)
	s.True(protocol.IsUsage(err))
	s.ErrorIs(err, os.ErrNotExist)
	s.Equal(0, s.fake.Calls("upload.init"))
}

func (s *AgentSuite) TestOfflineListWalksPages() {
	for i := 0; i < 7; i++ {
		s.fake.AddTask(fmt.Sprintf("https://example.com/file-%d.iso", i), 1, float64(i*10))
	}

	tasks, err := s.agent.Offline().List(s.ctx).Collect()
	s.Require().NoError(err)
	s.Require().Len(tasks, 7)
	for i, task := range tasks {
		s.Equal(fmt.Sprintf("file-%d.iso", i), task.Name)
		s.Equal(cloud115.TaskRunning, task.Status)
		s.InDelta(float64(i*10), task.Percent, 0.001)
		s.False(task.CreateTime.IsZero())
	}
	s.Equal([]int{1, 2, 3}, s.fake.TaskPages())
}

func (s *AgentSuite) TestOfflineAddDeleteClear() {
	offline := s.agent.Offline()

	tasks, err := offline.AddURL(s.ctx, "magnet:?xt=urn:btih:abc", "https://example.com/b.iso")
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal(cloud115.TaskRunning, tasks[0].Status)
	s.Equal("b.iso", tasks[1].Name)

	again, err := offline.AddURL(s.ctx, "https://example.com/b.iso")
	s.Require().NoError(err)
	s.Require().Len(again, 1)
	s.Equal(cloud115.TaskFailed, again[0].Status)
	s.Equal(tasks[1].InfoHash, again[0].InfoHash)

	s.Require().NoError(offline.Delete(s.ctx, tasks[0].InfoHash))
	s.Equal(1, s.fake.TaskCount())

	s.fake.AddTask("https://example.com/done.iso", 2, 100)
	s.Require().NoError(offline.Clear(s.ctx, cloud115.ClearDone))
	remaining, err := offline.List(s.ctx).Collect()
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal("b.iso", remaining[0].Name)

	s.Require().NoError(offline.Clear(s.ctx, cloud115.ClearAll))
	s.Equal(0, s.fake.TaskCount())
}

func TestRequestUploadAnswersSignCheck(t *testing.T) {
	fake := fakeremote.New(fakeremote.WithSignCheck())
	srv := httptest.NewServer(fake)
	defer srv.Close()

	content := bytes.Repeat([]byte("0123456789"), 100)
	_, err := fake.AddFile("0", "seed.bin", content)
	require.NoError(t, err)

	agent, err := cloud115.Login(context.Background(), testCredential,
		cloud115.WithSessionOptions(protocol.WithBaseURL(srv.URL)))
	require.NoError(t, err)

	ticket, err := agent.Storage().RequestUploadData(context.Background(), "0", "dup.bin", bytes.NewReader(content))
	require.NoError(t, err)
	assert.True(t, ticket.Done)
	assert.Equal(t, 2, fake.Calls("upload.init"))
	assert.Equal(t, 0, fake.Calls("upload.token"))
}

func TestNewFromEnv(t *testing.T) {
	fake := fakeremote.New()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	t.Setenv("CLOUD115_CONFIG", "")
	t.Setenv("CLOUD115_UID", fakeremote.DefaultUID)
	t.Setenv("CLOUD115_CID", fakeremote.DefaultCID)
	t.Setenv("CLOUD115_SEID", fakeremote.DefaultSEID)
	t.Setenv("CLOUD115_BASE_URL", srv.URL)
	t.Setenv("CLOUD115_USER_AGENT", "cloud115-test")
	t.Setenv("CLOUD115_RATE_LIMIT", "50")

	agent, err := cloud115.NewFromEnv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fakeremote.DefaultUserID, agent.User().ID)
	assert.Equal(t, "cloud115-test", agent.Session().UserAgent())
}

func TestNewFromEnvRequiresCredential(t *testing.T) {
	t.Setenv("CLOUD115_CONFIG", "")
	t.Setenv("CLOUD115_UID", "")
	t.Setenv("CLOUD115_CID", "")
	t.Setenv("CLOUD115_SEID", "")

	_, err := cloud115.NewFromEnv(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, cloud115.ErrIncompleteCredential))
}

func TestNewFromConfig(t *testing.T) {
	fake := fakeremote.New()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	agent, err := cloud115.NewFromConfig(context.Background(), &config.Config{
		Credential: config.Credential{
			UID:  fakeremote.DefaultUID,
			CID:  fakeremote.DefaultCID,
			SEID: fakeremote.DefaultSEID,
		},
		BaseURL:    srv.URL,
		AppVersion: config.DefaultAppVersion,
		Timeout:    5 * time.Second,
		LogLevel:   "warn",
	})
	require.NoError(t, err)
	assert.Equal(t, fakeremote.DefaultUserName, agent.User().Name)

	_, err = cloud115.NewFromConfig(context.Background(), &config.Config{})
	assert.ErrorIs(t, err, cloud115.ErrIncompleteCredential)
}
