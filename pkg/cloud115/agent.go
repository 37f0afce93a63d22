package cloud115

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/go115/cloud115/pkg/api"
	"github.com/go115/cloud115/pkg/protocol"
	"github.com/go115/cloud115/pkg/upload"
)

// DefaultAppVersion is reported to the offline and upload endpoints.
const DefaultAppVersion = "2.0.0.0"

type options struct {
	session    []protocol.Option
	appVersion string
	log        zerolog.Logger
}

// Option configures Login.
type Option func(*options)

// WithSessionOptions forwards options to the underlying protocol.Session.
func WithSessionOptions(opts ...protocol.Option) Option {
	return func(o *options) {
		o.session = append(o.session, opts...)
	}
}

// WithAppVersion overrides DefaultAppVersion.
func WithAppVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.appVersion = v
		}
	}
}

// WithLogger attaches a logger to the agent and its session.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// Agent is a logged in client.
type Agent struct {
	session *protocol.Session
	user    User
	offline *OfflineService
	storage *StorageService
}

// Login imports cred into a new session, verifies it against the remote and
// loads the identifiers the services need.
func Login(ctx context.Context, cred Credential, opts ...Option) (*Agent, error) {
	if cred.UID == "" || cred.CID == "" || cred.SEID == "" {
		return nil, &protocol.UsageError{Op: "login", Err: ErrIncompleteCredential}
	}
	o := options{appVersion: DefaultAppVersion, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	sessionOpts := append([]protocol.Option{protocol.WithLogger(o.log)}, o.session...)
	session, err := protocol.NewSession(sessionOpts...)
	if err != nil {
		return nil, fmt.Errorf("cloud115: create session: %w", err)
	}
	if err := session.ImportCookies(api.CookieURL, cred.cookies()); err != nil {
		return nil, fmt.Errorf("cloud115: import credential: %w", err)
	}

	info, err := protocol.Execute[api.UserInfo](ctx, session, api.UserInfoSpec{})
	if err != nil {
		if protocol.IsRemote(err) {
			return nil, fmt.Errorf("%w: %w", ErrNotLoggedIn, err)
		}
		return nil, err
	}
	if info.UserID == "" {
		return nil, ErrNotLoggedIn
	}
	uploadInfo, err := protocol.Execute[api.UploadInfo](ctx, session, api.UploadInfoSpec{})
	if err != nil {
		return nil, err
	}

	user := User{ID: string(info.UserID), Name: info.UserName}
	helper := upload.Helper{
		UserID:     string(uploadInfo.UserID),
		UserKey:    uploadInfo.UserKey,
		AppVersion: o.appVersion,
	}
	o.log.Info().Str("user_id", user.ID).Str("user_name", user.Name).Msg("logged in")

	return &Agent{
		session: session,
		user:    user,
		offline: &OfflineService{
			session:    session,
			appVersion: o.appVersion,
			userID:     user.ID,
		},
		storage: &StorageService{
			session:    session,
			negotiator: upload.NewNegotiator(session, helper, upload.WithLogger(o.log)),
		},
	}, nil
}

// User returns the logged in account.
func (a *Agent) User() User {
	return a.user
}

// Offline returns the offline task service.
func (a *Agent) Offline() *OfflineService {
	return a.offline
}

// Storage returns the file and directory service.
func (a *Agent) Storage() *StorageService {
	return a.storage
}

// Session exposes the underlying session for custom specs.
func (a *Agent) Session() *protocol.Session {
	return a.session
}

// Credential returns the current credential cookies, including any the
// remote rotated since login.
func (a *Agent) Credential() (Credential, error) {
	cookies, err := a.session.ExportCookies(api.CookieURL)
	if err != nil {
		return Credential{}, err
	}
	var cred Credential
	for _, c := range cookies {
		switch c.Name {
		case "UID":
			cred.UID = c.Value
		case "CID":
			cred.CID = c.Value
		case "SEID":
			cred.SEID = c.Value
		case "KID":
			cred.KID = c.Value
		}
	}
	if cred.UID == "" {
		return Credential{}, errors.New("cloud115: credential cookies missing from session")
	}
	return cred, nil
}

func (c Credential) cookies() []*http.Cookie {
	values := []struct{ name, value string }{
		{"UID", c.UID},
		{"CID", c.CID},
		{"SEID", c.SEID},
		{"KID", c.KID},
	}
	out := make([]*http.Cookie, 0, len(values))
	for _, v := range values {
		if v.value == "" {
			continue
		}
		out = append(out, &http.Cookie{
			Name:   v.name,
			Value:  v.value,
			Domain: api.CookieDomain,
			Path:   "/",
		})
	}
	return out
}
