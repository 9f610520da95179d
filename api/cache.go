package api

import (
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zeebo/blake3"
)

// etag returns a strong entity tag of a response body.
func etag(body []byte) string {
	var sum = blake3.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// notModified reports whether one of the tags in If-None-Match equals tag.
func notModified(req *http.Request, tag string) bool {
	for _, candidate := range strings.Split(req.Header.Get("If-None-Match"), ",") {
		if candidate = strings.TrimSpace(candidate); candidate == tag || candidate == "*" {
			return true
		}
	}
	return false
}

// writeCacheable writes v as JSON with an ETag header. If the client has the current version, it writes 304 Not Modified.
func writeCacheable(w http.ResponseWriter, req *http.Request, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	body = append(body, '\n')

	var tag = etag(body)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "private, no-cache")
	if notModified(req, tag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(body)
	return err
}
