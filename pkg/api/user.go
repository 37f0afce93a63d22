package api

import (
	"net/url"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/pkg/protocol"
)

// UserInfoSpec fetches the logged in account. It doubles as a credential
// check: expired cookies are rejected with a RemoteProtocolError.
type UserInfoSpec struct{}

// Request implements protocol.Spec.
func (UserInfoSpec) Request() (*protocol.Request, error) {
	return protocol.Get(urlNav, url.Values{"ct": {"ajax"}, "ac": {"nav"}}), nil
}

// Decode implements protocol.Spec.
func (UserInfoSpec) Decode(env *envelope.Envelope) (UserInfo, error) {
	var info UserInfo
	err := env.Decode(&info)
	return info, err
}

// UploadInfoSpec fetches the user key used to sign upload pre-checks.
type UploadInfoSpec struct{}

// Request implements protocol.Spec.
func (UploadInfoSpec) Request() (*protocol.Request, error) {
	return protocol.Get(urlUploadInfo, nil), nil
}

// Decode implements protocol.Spec.
func (UploadInfoSpec) Decode(env *envelope.Envelope) (UploadInfo, error) {
	var info UploadInfo
	err := env.Decode(&info)
	return info, err
}
