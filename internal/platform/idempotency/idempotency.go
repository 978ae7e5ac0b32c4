// Package idempotency replays stored responses when a client retries a
// mutating request with the same Idempotency-Key, so a flaky network cannot
// place the same order twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long a stored response stays replayable.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a stored record.
type Status string

const (
	// StatusInFlight marks a key claimed by a request still being processed.
	StatusInFlight Status = "in_flight"
	// StatusStored marks a key whose response has been captured for replay.
	StatusStored Status = "stored"
)

// Outcome tells the middleware what to do after claiming a key.
type Outcome int

const (
	// OutcomeProceed means the key is fresh and the request should run.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a stored response exists and should be served.
	OutcomeReplay
	// OutcomeInFlight means another request holds the key right now.
	OutcomeInFlight
)

// Claim is the result of attempting to take ownership of a key.
type Claim struct {
	Outcome Outcome
	Record  Record
}

// Record is the persisted state for one idempotency key.
type Record struct {
	Key             string
	Digest          string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the captured HTTP response to store for future replays.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists idempotency claims and their captured responses.
type Store interface {
	// Claim takes ownership of the key or reports what already holds it.
	Claim(ctx context.Context, key, digest string, now time.Time, ttl time.Duration) (Claim, error)
	// Complete stores the response so later retries replay it.
	Complete(ctx context.Context, key, digest string, resp Response, now time.Time, ttl time.Duration) error
	// Forget drops the claim so the client may retry after a storage failure.
	Forget(ctx context.Context, key, digest string) error
	// Sweep deletes expired records, up to limit, returning how many went.
	Sweep(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrDigestMismatch is returned when a key is reused for a different request.
var ErrDigestMismatch = errors.New("idempotency: key reused for a different request")

// docID derives the storage document name from the client-supplied key.
func docID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// storableHeaders copies the response headers worth replaying, dropping
// hop-by-hop and connection-managed ones.
func storableHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}
	kept := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if skipHeader(canonical) {
			continue
		}
		kept[canonical] = append([]string(nil), values...)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

func skipHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive",
		"proxy-authenticate", "proxy-authorization", "te", "trailers",
		"transfer-encoding", "upgrade":
		return true
	}
	return false
}

func recordHeaders(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
