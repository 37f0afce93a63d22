package fakeremote

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/crc64"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/go115/cloud115/pkg/upload"
)

// Bucket is the bucket named in upload pre-check replies.
const Bucket = "fake-bucket"

var crcTable = crc64.MakeTable(crc64.ECMA)

func (s *Server) handleUploadInfo(w http.ResponseWriter, r *http.Request) {
	userID, _ := strconv.Atoi(DefaultUserID)
	writeJSON(w, map[string]any{
		"state":      true,
		"user_id":    userID,
		"userkey":    DefaultUserKey,
		"size_limit": int64(115) << 30,
	})
}

func initReply(status, code int, msg string) map[string]any {
	return map[string]any{"status": status, "statuscode": code, "statusmsg": msg}
}

func (s *Server) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := r.PostForm
	helper := upload.Helper{UserID: DefaultUserID, UserKey: DefaultUserKey, AppVersion: form.Get("appversion")}
	fileID := form.Get("fileid")
	target := form.Get("target")
	size, _ := strconv.ParseInt(form.Get("filesize"), 10, 64)
	t, _ := strconv.ParseInt(form.Get("t"), 10, 64)

	if form.Get("userid") != DefaultUserID {
		writeJSON(w, initReply(0, 1000, "user mismatch"))
		return
	}
	if form.Get("sig") != helper.Signature(fileID, target) {
		writeJSON(w, initReply(0, 1001, "signature invalid"))
		return
	}
	if form.Get("token") != helper.Token(fileID, size, form.Get("sign_key"), form.Get("sign_val"), t) {
		writeJSON(w, initReply(0, 1003, "token invalid"))
		return
	}
	dirID, ok := strings.CutPrefix(target, "U_1_")

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ok || !s.store.isDir(dirID) {
		writeJSON(w, initReply(0, 1002, "target invalid"))
		return
	}

	existing := s.store.findBySHA1(fileID)
	if existing == nil {
		object := newToken()
		s.store.pending[object] = pendingUpload{dirID: dirID, name: form.Get("filename"), sha1: fileID, size: size}
		callback, _ := json.Marshal(map[string]string{
			"callbackUrl":  baseURL(r) + "/upload/callback",
			"callbackBody": "bucket=${bucket}&object=${object}&etag=${etag}&size=${size}&sha1=${x:sha1}",
		})
		callbackVar, _ := json.Marshal(map[string]string{"x:sha1": fileID, "x:target": target})
		reply := initReply(1, 0, "")
		reply["bucket"] = Bucket
		reply["object"] = object
		reply["target"] = target
		reply["callback"] = map[string]string{"callback": string(callback), "callback_var": string(callbackVar)}
		writeJSON(w, reply)
		return
	}

	if s.signCheck && len(existing.content) > 0 {
		key := form.Get("sign_key")
		byteRange, issued := s.store.signs[key]
		if key == "" || !issued {
			key = newToken()
			end := int64(len(existing.content)) - 1
			if end > 127 {
				end = 127
			}
			byteRange = fmt.Sprintf("0-%d", end)
			s.store.signs[key] = byteRange
			reply := initReply(7, 701, "sign check required")
			reply["sign_key"] = key
			reply["sign_check"] = byteRange
			writeJSON(w, reply)
			return
		}
		delete(s.store.signs, key)
		if form.Get("sign_val") != rangeSHA1(existing.content, byteRange) {
			writeJSON(w, initReply(0, 1004, "sign check failed"))
			return
		}
	}

	e, err := s.store.addFile(dirID, form.Get("filename"), existing.content)
	if err != nil {
		writeJSON(w, initReply(0, 1002, err.Error()))
		return
	}
	reply := initReply(2, 0, "")
	reply["pickcode"] = e.pickCode
	reply["file_id"] = e.id
	reply["target"] = target
	writeJSON(w, reply)
}

func (s *Server) handleUploadToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"StatusCode":      "200",
		"AccessKeyId":     "STS.fake",
		"AccessKeySecret": "fake-secret",
		"SecurityToken":   newToken(),
		"Expiration":      time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		"endpoint":        baseURL(r),
	})
}

// handleObjectPut stores an object and runs the upload callback inline.
func (s *Server) handleObjectPut(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if vars["bucket"] != Bucket {
		http.Error(w, "no such bucket", http.StatusNotFound)
		return
	}
	if r.Header.Get("X-Oss-Security-Token") == "" {
		http.Error(w, "security token required", http.StatusForbidden)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.store.pending[vars["object"]]
	if !ok {
		http.Error(w, "no such upload", http.StatusNotFound)
		return
	}
	sum := sha1.Sum(body)
	if got := strings.ToUpper(hex.EncodeToString(sum[:])); got != pending.sha1 {
		http.Error(w, "content does not match pre-check", http.StatusBadRequest)
		return
	}
	e, err := s.store.addFile(pending.dirID, pending.name, body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	delete(s.store.pending, vars["object"])

	w.Header().Set("ETag", `"`+e.sha1+`"`)
	w.Header().Set("X-Oss-Hash-Crc64ecma", strconv.FormatUint(crc64.Checksum(body, crcTable), 10))
	writeJSON(w, map[string]any{
		"state": true,
		"data":  map[string]any{"file_id": e.id, "pick_code": e.pickCode, "file_name": e.name},
	})
}

func rangeSHA1(content []byte, byteRange string) string {
	before, after, _ := strings.Cut(byteRange, "-")
	start, _ := strconv.Atoi(before)
	end, _ := strconv.Atoi(after)
	if start < 0 || end >= len(content) || end < start {
		return ""
	}
	sum := sha1.Sum(content[start : end+1])
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
