// Package backend defines the heterogeneous database-backend capability
// set and the concrete backends that implement it: five HTTP JSON
// APIs, a local SQLite FTS5 index, and a local in-process inverted index.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// Backend is the uniform capability set every database source implements.
// Concrete variants are plain structs — there is no inheritance hierarchy.
type Backend interface {
	// Name identifies the backend in verdicts, cache keys, and progress
	// events (e.g. "CrossRef", "DBLP").
	Name() string
	// IsLocal reports whether Query performs blocking local I/O instead of
	// a network round-trip; callers use this to pick the short local
	// timeout instead of the network timeout.
	IsLocal() bool
	// Query looks up title and returns a Found/NotFound/Error outcome. It
	// never panics and always returns promptly when ctx is cancelled.
	Query(ctx context.Context, title string) (types.DbOutcome, error)
}

// UserAgent identifies this tool to every HTTP backend.
const UserAgent = "hallucinator/1.0 (+https://github.com/gianlucasb/hallucinator)"

// isRateLimitedStatus reports whether an HTTP response status indicates
// the backend wants the caller to back off.
func isRateLimitedStatus(code int) bool {
	return code == http.StatusTooManyRequests
}

// looksRateLimited scans a response body for explicit rate-limit language,
// for APIs that signal throttling in the body rather than the status code.
func looksRateLimited(body string) bool {
	return strings.Contains(strings.ToLower(body), "rate limit")
}

// classifyHTTPError maps a non-2xx HTTP response to the right ErrorKind.
func classifyHTTPError(statusCode int, body string) types.DbOutcome {
	switch {
	case isRateLimitedStatus(statusCode) || looksRateLimited(body):
		return types.Error(types.ErrorRateLimited, "HTTP 429 / rate limited")
	default:
		return types.Error(types.ErrorHTTPStatus, fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)))
	}
}
