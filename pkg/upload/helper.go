package upload

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

const tokenSalt = "Qclm8MGWUv59TnrR0XPg"

// Helper derives the anti-abuse values the pre-check requires from the
// account's upload identity.
type Helper struct {
	UserID     string
	UserKey    string
	AppVersion string
}

// Target returns the pre-check target for a directory.
func Target(dirID string) string {
	return "U_1_" + dirID
}

// Signature signs a (file, target) pair with the user key.
func (h Helper) Signature(fileID, target string) string {
	inner := sha1.Sum([]byte(h.UserID + fileID + target + "0"))
	outer := sha1.Sum([]byte(h.UserKey + hex.EncodeToString(inner[:]) + "000000"))
	return upperHex(outer[:])
}

// Token computes the request token for a pre-check sent at unix time t.
// signKey and signValue are empty outside a sign-check round.
func (h Helper) Token(fileID string, fileSize int64, signKey, signValue string, t int64) string {
	userHash := md5.Sum([]byte(h.UserID))
	sum := md5.Sum([]byte(tokenSalt +
		fileID +
		strconv.FormatInt(fileSize, 10) +
		signKey +
		signValue +
		h.UserID +
		strconv.FormatInt(t, 10) +
		hex.EncodeToString(userHash[:]) +
		h.AppVersion))
	return hex.EncodeToString(sum[:])
}
