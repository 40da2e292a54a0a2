package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware records every /api request in the audit trail: action, caller
// key fingerprint, duration and outcome. Writes are asynchronous so request
// latency is unaffected.
func Middleware(logger Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		entry := &Entry{
			Action:     r.Method + " " + r.URL.Path,
			AgentID:    keyFingerprint(r.Header.Get("X-API-Key")),
			RemoteIP:   remoteIP(r),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if rec.status >= 400 {
			entry.Error = fmt.Sprintf("http %d", rec.status)
		}
		logger.LogAsync(entry)
	})
}

// keyFingerprint identifies the caller without storing key material: the
// first 8 hex chars of the key's SHA-256, which also prefixes the stored
// api_key_hash.
func keyFingerprint(key string) string {
	if key == "" {
		return ""
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])[:8]
}

func remoteIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = fwd
	}
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}
