// Package id generates identifiers for requests and browser pages.
//
// Request IDs are prefixed ULIDs, so interleaved log lines for concurrent
// requests sort by arrival. Page IDs are prefixed random UUIDs; they only
// need to be unique while one page is open.
package id

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RequestID identifies an inbound API request
type RequestID string

// PageID identifies one browser page opened for a fetch attempt
type PageID string

const (
	RequestPrefix = "req"
	PagePrefix    = "page"

	separator = "_"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func newULID() ulid.ULID {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// NewRequestID generates a new request ID. IDs created in the same
// millisecond still sort in creation order.
func NewRequestID() RequestID {
	return RequestID(RequestPrefix + separator + newULID().String())
}

// NewPageID generates a new page ID
func NewPageID() PageID {
	return PageID(PagePrefix + separator + uuid.NewString())
}

func (id RequestID) String() string { return string(id) }
func (id PageID) String() string    { return string(id) }

// Time returns when the request ID was generated
func (id RequestID) Time() (time.Time, error) {
	return Timestamp(strings.TrimPrefix(string(id), RequestPrefix+separator))
}

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// Timestamp extracts the timestamp from a ULID
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
