package upload

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go115/cloud115/pkg/protocol"
)

// PreHashSize is the length of the prefix hashed into Fingerprint.PreSHA1.
const PreHashSize = 128 * 1024

var errBadRange = errors.New("invalid byte range")

// Fingerprint identifies the content of a stream.
type Fingerprint struct {
	Size int64
	// SHA1 is the uppercase hex SHA-1 of the whole stream.
	SHA1 string
	// PreSHA1 is the uppercase hex SHA-1 of the first PreHashSize bytes.
	PreSHA1 string
}

// ComputeFingerprint hashes rs from its start and rewinds it to offset 0.
// Seek failures wrap protocol.ErrNotSeekable; read failures carry their
// cause.
func ComputeFingerprint(rs io.ReadSeeker) (Fingerprint, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Fingerprint{}, fmt.Errorf("upload: rewind stream: %w: %w", protocol.ErrNotSeekable, err)
	}

	full := sha1.New()
	pre := sha1.New()
	head, err := io.Copy(io.MultiWriter(full, pre), io.LimitReader(rs, PreHashSize))
	if err != nil {
		return Fingerprint{}, fmt.Errorf("upload: read stream: %w", err)
	}
	tail, err := io.Copy(full, rs)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("upload: read stream: %w", err)
	}

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return Fingerprint{}, fmt.Errorf("upload: rewind stream: %w: %w", protocol.ErrNotSeekable, err)
	}
	return Fingerprint{
		Size:    head + tail,
		SHA1:    upperHex(full.Sum(nil)),
		PreSHA1: upperHex(pre.Sum(nil)),
	}, nil
}

// RangeSHA1 hashes the inclusive byte range "start-end" of rs and rewinds
// it to offset 0.
func RangeSHA1(rs io.ReadSeeker, byteRange string) (string, error) {
	start, end, err := parseRange(byteRange)
	if err != nil {
		return "", err
	}
	if _, err := rs.Seek(start, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload: seek to range: %w: %w", protocol.ErrNotSeekable, err)
	}
	h := sha1.New()
	n, err := io.Copy(h, io.LimitReader(rs, end-start+1))
	if err != nil {
		return "", fmt.Errorf("upload: read range: %w", err)
	}
	if n != end-start+1 {
		return "", fmt.Errorf("upload: %w %q: exceeds stream", errBadRange, byteRange)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("upload: rewind stream: %w: %w", protocol.ErrNotSeekable, err)
	}
	return upperHex(h.Sum(nil)), nil
}

func parseRange(byteRange string) (int64, int64, error) {
	before, after, ok := strings.Cut(strings.TrimSpace(byteRange), "-")
	if !ok {
		return 0, 0, fmt.Errorf("upload: %w %q", errBadRange, byteRange)
	}
	start, err := strconv.ParseInt(before, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("upload: %w %q: %v", errBadRange, byteRange, err)
	}
	end, err := strconv.ParseInt(after, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("upload: %w %q: %v", errBadRange, byteRange, err)
	}
	if start < 0 || end < start {
		return 0, 0, fmt.Errorf("upload: %w %q", errBadRange, byteRange)
	}
	return start, end, nil
}

func upperHex(sum []byte) string {
	return strings.ToUpper(hex.EncodeToString(sum))
}
