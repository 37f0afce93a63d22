// Package ossupload redeems upload tickets against the object-storage
// backend with the Aliyun OSS SDK.
package ossupload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/rs/zerolog"

	"github.com/go115/cloud115/pkg/upload"
)

var (
	// ErrNoCredential is returned for tickets that carry no credential.
	ErrNoCredential = errors.New("ossupload: ticket carries no credential")
	// ErrExpired is returned when the ticket's credential has expired.
	ErrExpired = errors.New("ossupload: credential expired")
)

// Option configures an Uploader.
type Option func(*Uploader)

// WithClientOptions forwards options to every oss.Client the uploader
// creates.
func WithClientOptions(opts ...oss.ClientOption) Option {
	return func(u *Uploader) {
		u.clientOpts = append(u.clientOpts, opts...)
	}
}

// WithLogger attaches a logger.
func WithLogger(l zerolog.Logger) Option {
	return func(u *Uploader) {
		u.log = l
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(u *Uploader) {
		if now != nil {
			u.now = now
		}
	}
}

// Uploader transfers bytes described by an upload.Ticket.
type Uploader struct {
	clientOpts []oss.ClientOption
	log        zerolog.Logger
	now        func() time.Time
}

// New creates an Uploader.
func New(opts ...Option) *Uploader {
	u := &Uploader{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Transfer writes r to the object named by ticket. Tickets already marked
// Done need no transfer and return immediately. The remote registers the
// file through the ticket's callback once the object is stored.
func (u *Uploader) Transfer(ctx context.Context, ticket *upload.Ticket, r io.Reader) error {
	if ticket == nil {
		return errors.New("ossupload: ticket is nil")
	}
	if ticket.Done {
		return nil
	}
	cred := ticket.Credential
	if cred == nil {
		return ErrNoCredential
	}
	if cred.Expired(u.now()) {
		return ErrExpired
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	clientOpts := append([]oss.ClientOption{oss.SecurityToken(cred.SecurityToken)}, u.clientOpts...)
	client, err := oss.New(cred.Endpoint, cred.AccessKeyID, cred.AccessKeySecret, clientOpts...)
	if err != nil {
		return fmt.Errorf("ossupload: create client: %w", err)
	}
	bucket, err := client.Bucket(cred.Bucket)
	if err != nil {
		return fmt.Errorf("ossupload: open bucket %s: %w", cred.Bucket, err)
	}

	var putOpts []oss.Option
	if cred.Callback != "" {
		putOpts = append(putOpts, oss.Callback(base64.StdEncoding.EncodeToString([]byte(cred.Callback))))
	}
	if cred.CallbackVar != "" {
		putOpts = append(putOpts, oss.CallbackVar(base64.StdEncoding.EncodeToString([]byte(cred.CallbackVar))))
	}

	start := time.Now()
	if err := bucket.PutObject(cred.Object, r, putOpts...); err != nil {
		return fmt.Errorf("ossupload: put %s: %w", cred.Object, err)
	}
	u.log.Debug().
		Str("bucket", cred.Bucket).
		Str("object", cred.Object).
		Int64("size", ticket.Size).
		Dur("elapsed", time.Since(start)).
		Msg("object stored")
	return nil
}
