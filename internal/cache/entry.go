// Package cache provides the store abstraction for the gateway: named
// containers of cached responses with insertion-ordered key listing,
// FIFO eviction and staleness checks.
package cache

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	appErrors "nimbus-gateway/pkg/errors"
)

// Entry is a single cached response. StoredAt is injected by the cache
// layer when the entry is written, never taken from the origin server,
// and is the sole basis for staleness decisions. Entries are immutable
// once stored; a refresh replaces the whole entry.
type Entry struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status"`
	Headers     map[string]string `json:"headers"`
	Body        []byte            `json:"body"`
	StoredAt    time.Time         `json:"stored_at"`
}

// Cacheable reports whether the entry may be written to a container.
// Only 2xx responses are cached.
func (e *Entry) Cacheable() bool {
	return e.Status >= 200 && e.Status < 300
}

// Clone returns a deep copy so callers never share body or header maps
// with the store.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	out := &Entry{
		Fingerprint: e.Fingerprint,
		Status:      e.Status,
		StoredAt:    e.StoredAt,
	}
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	if e.Body != nil {
		out.Body = make([]byte, len(e.Body))
		copy(out.Body, e.Body)
	}
	return out
}

// IsStale reports whether the entry's age exceeds maxAge at the given
// instant. An entry without a stored timestamp is infinitely stale.
// maxAge <= 0 means the traffic class has no staleness semantics.
// Staleness never deletes an entry; it only informs logging and refresh
// decisions inside the strategies.
func IsStale(e *Entry, maxAge time.Duration, now time.Time) bool {
	if e == nil {
		return true
	}
	if e.StoredAt.IsZero() {
		return true
	}
	if maxAge <= 0 {
		return false
	}
	return now.Sub(e.StoredAt) > maxAge
}

// cacheableMethods are the idempotent request methods the gateway will
// ever cache. Everything else bypasses the cache entirely.
var cacheableMethods = map[string]struct{}{
	"GET":  {},
	"HEAD": {},
}

// MethodCacheable reports whether the request method is idempotent from
// the cache's point of view.
func MethodCacheable(method string) bool {
	_, ok := cacheableMethods[strings.ToUpper(method)]
	return ok
}

// Fingerprint derives the stable store key for a request: the upper-cased
// method plus the normalized URL. Normalization lowercases scheme and
// host, strips default ports, drops the fragment and defaults an empty
// path to "/".
func Fingerprint(method, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", appErrors.NewValidation(fmt.Sprintf("unparseable request url %q", rawURL))
	}
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return strings.ToUpper(method) + " " + u.String(), nil
}

// SplitFingerprint is the inverse of Fingerprint; the background
// refresher uses it to replay stored requests.
func SplitFingerprint(fp string) (method, rawURL string, ok bool) {
	method, rawURL, ok = strings.Cut(fp, " ")
	if !ok || method == "" || rawURL == "" {
		return "", "", false
	}
	return method, rawURL, true
}
