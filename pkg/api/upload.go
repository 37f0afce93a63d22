package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go115/cloud115/internal/envelope"
	"github.com/go115/cloud115/pkg/protocol"
)

// Pre-check statuses.
const (
	InitStatusUpload    = 1
	InitStatusDone      = 2
	InitStatusSignCheck = 7
)

// UploadInitSpec is the upload pre-check: it submits the fingerprint of a
// local file and learns whether the remote already stores the content.
type UploadInitSpec struct {
	AppVersion string
	UserID     string
	FileName   string
	FileSize   int64
	// FileID is the uppercase hex SHA-1 of the whole content.
	FileID string
	// PreID is the uppercase hex SHA-1 of the first 128 KiB.
	PreID     string
	Target    string
	Signature string
	Token     string
	Timestamp int64
	// SignKey and SignValue answer a previous status 7 reply.
	SignKey   string
	SignValue string
}

// InitResult is the decoded pre-check reply.
type InitResult struct {
	Status      int
	StatusCode  int
	StatusMsg   string
	PickCode    string
	FileID      string
	Target      string
	Bucket      string
	Object      string
	Callback    string
	CallbackVar string
	SignKey     string
	SignCheck   string
}

// Done reports whether the remote already holds the content.
func (r InitResult) Done() bool {
	return r.Status == InitStatusDone
}

// Request implements protocol.Spec.
func (s UploadInitSpec) Request() (*protocol.Request, error) {
	if strings.TrimSpace(s.FileName) == "" {
		return nil, &protocol.UsageError{Op: "upload init", Err: errors.New("file name is required")}
	}
	if s.FileID == "" {
		return nil, &protocol.UsageError{Op: "upload init", Err: errors.New("fingerprint is required")}
	}
	form := url.Values{
		"appid":      {"0"},
		"appversion": {s.AppVersion},
		"userid":     {s.UserID},
		"filename":   {s.FileName},
		"filesize":   {strconv.FormatInt(s.FileSize, 10)},
		"fileid":     {s.FileID},
		"preid":      {s.PreID},
		"target":     {s.Target},
		"sig":        {s.Signature},
		"token":      {s.Token},
		"t":          {strconv.FormatInt(s.Timestamp, 10)},
		"sign_key":   {s.SignKey},
		"sign_val":   {s.SignValue},
	}
	return protocol.PostForm(urlUploadInit, url.Values{"isp": {"0"}, "format": {"json"}}, form), nil
}

// ParseEnvelope implements protocol.EnvelopeParser. The pre-check replies
// with status/statuscode instead of a state flag.
func (UploadInitSpec) ParseEnvelope(body []byte) (*envelope.Envelope, error) {
	fields, err := envelope.Fields(body)
	if err != nil {
		return nil, err
	}
	status := envelope.FirstInt(fields, "status")
	code := envelope.FirstInt(fields, "statuscode")
	msg := envelope.FirstString(fields, "statusmsg")

	switch {
	case status == InitStatusSignCheck:
	case (status == InitStatusUpload || status == InitStatusDone) && code == 0:
	default:
		if msg == "" {
			msg = fmt.Sprintf("unexpected upload status %d", status)
		}
		return nil, &protocol.RemoteProtocolError{Code: code, Message: msg}
	}
	return &envelope.Envelope{
		State:   true,
		Shape:   envelope.ShapeFlat,
		Code:    code,
		Message: msg,
		Payload: body,
		Raw:     body,
	}, nil
}

// Decode implements protocol.Spec.
func (UploadInitSpec) Decode(env *envelope.Envelope) (InitResult, error) {
	var body struct {
		Status     envelope.Int64  `json:"status"`
		StatusCode envelope.Int64  `json:"statuscode"`
		StatusMsg  string          `json:"statusmsg"`
		PickCode   string          `json:"pickcode"`
		FileID     envelope.String `json:"file_id"`
		Target     string          `json:"target"`
		Bucket     string          `json:"bucket"`
		Object     string          `json:"object"`
		Callback   json.RawMessage `json:"callback"`
		SignKey    string          `json:"sign_key"`
		SignCheck  string          `json:"sign_check"`
	}
	if err := env.Decode(&body); err != nil {
		return InitResult{}, err
	}
	// The callback is an object on status 1 and an empty string otherwise.
	var callback struct {
		Callback    string `json:"callback"`
		CallbackVar string `json:"callback_var"`
	}
	if len(body.Callback) > 0 && body.Callback[0] == '{' {
		if err := json.Unmarshal(body.Callback, &callback); err != nil {
			return InitResult{}, fmt.Errorf("api: decode upload callback: %w", err)
		}
	}
	return InitResult{
		Status:      int(body.Status),
		StatusCode:  int(body.StatusCode),
		StatusMsg:   body.StatusMsg,
		PickCode:    body.PickCode,
		FileID:      string(body.FileID),
		Target:      body.Target,
		Bucket:      body.Bucket,
		Object:      body.Object,
		Callback:    callback.Callback,
		CallbackVar: callback.CallbackVar,
		SignKey:     body.SignKey,
		SignCheck:   body.SignCheck,
	}, nil
}

// UploadToken is a set of temporary object-storage credentials.
type UploadToken struct {
	Endpoint        string
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
	Expiration      time.Time
}

// UploadTokenSpec fetches temporary object-storage credentials. It does not
// depend on the file being uploaded.
type UploadTokenSpec struct{}

// Request implements protocol.Spec.
func (UploadTokenSpec) Request() (*protocol.Request, error) {
	return protocol.Get(urlUploadToken, nil), nil
}

// ParseEnvelope implements protocol.EnvelopeParser. Success is signalled by
// StatusCode "200".
func (UploadTokenSpec) ParseEnvelope(body []byte) (*envelope.Envelope, error) {
	fields, err := envelope.Fields(body)
	if err != nil {
		return nil, err
	}
	if status := envelope.FirstString(fields, "StatusCode"); status != "200" {
		return nil, &protocol.RemoteProtocolError{
			Code:    envelope.FirstInt(fields, "StatusCode"),
			Message: fmt.Sprintf("token request failed with status %q", status),
		}
	}
	return &envelope.Envelope{State: true, Shape: envelope.ShapeFlat, Payload: body, Raw: body}, nil
}

// Decode implements protocol.Spec.
func (UploadTokenSpec) Decode(env *envelope.Envelope) (UploadToken, error) {
	var body struct {
		Endpoint        string `json:"endpoint"`
		AccessKeyID     string `json:"AccessKeyId"`
		AccessKeySecret string `json:"AccessKeySecret"`
		SecurityToken   string `json:"SecurityToken"`
		Expiration      string `json:"Expiration"`
	}
	if err := env.Decode(&body); err != nil {
		return UploadToken{}, err
	}
	token := UploadToken{
		Endpoint:        body.Endpoint,
		AccessKeyID:     body.AccessKeyID,
		AccessKeySecret: body.AccessKeySecret,
		SecurityToken:   body.SecurityToken,
	}
	if body.Expiration != "" {
		exp, err := time.Parse(time.RFC3339, body.Expiration)
		if err != nil {
			return UploadToken{}, fmt.Errorf("api: decode token expiration: %w", err)
		}
		token.Expiration = exp
	}
	return token, nil
}
