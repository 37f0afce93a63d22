package upload

import "time"

// Ticket is the outcome of a negotiation. Exactly one variant is populated:
// Done with the remote file identity, or Credential for a pending transfer.
type Ticket struct {
	Done bool
	// FileID and PickCode identify the stored file when Done.
	FileID   string
	PickCode string

	Name   string
	Size   int64
	SHA1   string
	Target string

	Credential *Credential
}

// NeedsTransfer reports whether the caller still has to send the bytes.
func (t *Ticket) NeedsTransfer() bool {
	return t != nil && !t.Done && t.Credential != nil
}

// Credential is a time-limited grant to write one object to the storage
// backend. Callback and CallbackVar are forwarded verbatim so the backend
// can notify the remote once the object is stored.
type Credential struct {
	Endpoint        string
	Bucket          string
	Object          string
	AccessKeyID     string
	AccessKeySecret string
	SecurityToken   string
	Expiration      time.Time
	Callback        string
	CallbackVar     string
}

// Expired reports whether the credential is no longer usable at now.
func (c *Credential) Expired(now time.Time) bool {
	return c == nil || (!c.Expiration.IsZero() && !now.Before(c.Expiration))
}
