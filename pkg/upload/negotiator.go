package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/go115/cloud115/pkg/api"
	"github.com/go115/cloud115/pkg/protocol"
)

// MaxSignChecks bounds the range sign-check rounds of one negotiation.
const MaxSignChecks = 3

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithClock overrides the time source used for request tokens.
func WithClock(now func() time.Time) Option {
	return func(n *Negotiator) {
		if now != nil {
			n.now = now
		}
	}
}

// WithLogger attaches a logger for negotiation events.
func WithLogger(l zerolog.Logger) Option {
	return func(n *Negotiator) {
		n.log = l
	}
}

// Negotiator runs the pre-check/token handshake over a session.
type Negotiator struct {
	session *protocol.Session
	helper  Helper
	now     func() time.Time
	log     zerolog.Logger
}

// NewNegotiator binds a negotiator to an authenticated session.
func NewNegotiator(s *protocol.Session, h Helper, opts ...Option) *Negotiator {
	n := &Negotiator{
		session: s,
		helper:  h,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Negotiate prepares the upload of r into directory dirID under name. r must
// be an io.ReadSeeker; anything else fails with a UsageError before any
// network call. A negative size is resolved from the stream. On return r is
// positioned at offset 0, ready for the transfer.
func (n *Negotiator) Negotiate(ctx context.Context, dirID, name string, size int64, r io.Reader) (*Ticket, error) {
	const op = "negotiate upload"

	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return nil, &protocol.UsageError{Op: op, Err: protocol.ErrNotSeekable}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &protocol.UsageError{Op: op, Err: errors.New("file name is required")}
	}
	if strings.TrimSpace(dirID) == "" {
		dirID = api.RootDirID
	}

	if size < 0 {
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, &protocol.UsageError{Op: op, Err: fmt.Errorf("%w: %v", protocol.ErrNotSeekable, err)}
		}
		size = end
	}
	fp, err := ComputeFingerprint(rs)
	if err != nil {
		return nil, &protocol.UsageError{Op: op, Err: err}
	}
	if fp.Size != size {
		return nil, &protocol.UsageError{Op: op, Err: fmt.Errorf("stream holds %d bytes, expected %d", fp.Size, size)}
	}

	target := Target(dirID)
	spec := api.UploadInitSpec{
		AppVersion: n.helper.AppVersion,
		UserID:     n.helper.UserID,
		FileName:   name,
		FileSize:   fp.Size,
		FileID:     fp.SHA1,
		PreID:      fp.PreSHA1,
		Target:     target,
		Signature:  n.helper.Signature(fp.SHA1, target),
	}

	result, err := n.precheck(ctx, rs, spec)
	if err != nil {
		return nil, err
	}

	ticket := &Ticket{
		Name:   name,
		Size:   fp.Size,
		SHA1:   fp.SHA1,
		Target: target,
	}
	if result.Target != "" {
		ticket.Target = result.Target
	}
	if result.Done() {
		ticket.Done = true
		ticket.FileID = result.FileID
		ticket.PickCode = result.PickCode
		n.log.Debug().Str("name", name).Str("sha1", fp.SHA1).Msg("upload already stored")
		return ticket, nil
	}

	token, err := protocol.Execute[api.UploadToken](ctx, n.session, api.UploadTokenSpec{})
	if err != nil {
		return nil, err
	}
	ticket.Credential = &Credential{
		Endpoint:        token.Endpoint,
		Bucket:          result.Bucket,
		Object:          result.Object,
		AccessKeyID:     token.AccessKeyID,
		AccessKeySecret: token.AccessKeySecret,
		SecurityToken:   token.SecurityToken,
		Expiration:      token.Expiration,
		Callback:        result.Callback,
		CallbackVar:     result.CallbackVar,
	}
	n.log.Debug().
		Str("name", name).
		Str("bucket", result.Bucket).
		Str("object", result.Object).
		Msg("upload needs transfer")
	return ticket, nil
}

// precheck submits spec, answering up to MaxSignChecks range sign checks.
func (n *Negotiator) precheck(ctx context.Context, rs io.ReadSeeker, spec api.UploadInitSpec) (api.InitResult, error) {
	for round := 0; ; round++ {
		spec.Timestamp = n.now().Unix()
		spec.Token = n.helper.Token(spec.FileID, spec.FileSize, spec.SignKey, spec.SignValue, spec.Timestamp)

		result, err := protocol.Execute[api.InitResult](ctx, n.session, spec)
		if err != nil {
			return api.InitResult{}, err
		}
		if result.Status != api.InitStatusSignCheck {
			return result, nil
		}
		if round >= MaxSignChecks {
			return api.InitResult{}, &protocol.RemoteProtocolError{
				Code:    result.StatusCode,
				Message: fmt.Sprintf("sign check not settled after %d rounds", MaxSignChecks),
			}
		}

		value, err := RangeSHA1(rs, result.SignCheck)
		if errors.Is(err, errBadRange) {
			return api.InitResult{}, &protocol.RemoteProtocolError{Code: result.StatusCode, Message: err.Error()}
		}
		if err != nil {
			return api.InitResult{}, &protocol.UsageError{Op: "negotiate upload", Err: err}
		}
		n.log.Debug().Str("range", result.SignCheck).Int("round", round+1).Msg("answering upload sign check")
		spec.SignKey = result.SignKey
		spec.SignValue = value
	}
}
