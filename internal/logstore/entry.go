package logstore

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Status is the outcome recorded for a query.
type Status string

const (
	StatusFound    Status = "FOUND"
	StatusNotFound Status = "NOT_FOUND"
	StatusError    Status = "ERROR"
)

// Valid reports whether s is one of the three recorded outcomes.
func (s Status) Valid() bool {
	return s == StatusFound || s == StatusNotFound || s == StatusError
}

// MaxQueryBytes bounds the stored query text.
const MaxQueryBytes = 1024

var (
	// ErrEntryCompleted is returned when Complete is called a second time.
	ErrEntryCompleted = errors.New("log entry already completed")
	// ErrEntryIncomplete is returned when persisting an entry that was
	// never completed.
	ErrEntryIncomplete = errors.New("log entry not completed")
)

// Entry is one persisted query record.
type Entry struct {
	ID            string    `json:"id"`
	Query         string    `json:"query"`
	RequestingIP  string    `json:"requesting_ip"`
	ExecutionTime float64   `json:"execution_time"`
	Timestamp     time.Time `json:"timestamp"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`

	completed bool
}

// NewEntry starts a record for query from requestingIP. The query is made
// valid UTF-8 and cut to MaxQueryBytes without splitting a code point.
func NewEntry(query, requestingIP string) *Entry {
	return &Entry{
		ID:           uuid.NewString(),
		Query:        TruncateQuery(query, MaxQueryBytes),
		RequestingIP: requestingIP,
	}
}

// Complete records the outcome. It succeeds exactly once; the entry is
// immutable afterwards.
func (e *Entry) Complete(status Status, elapsed time.Duration, detail string) error {
	if e.completed {
		return ErrEntryCompleted
	}
	e.Status = status
	e.ExecutionTime = elapsed.Seconds()
	e.Timestamp = time.Now().UTC()
	e.Error = detail
	e.completed = true
	return nil
}

// Completed reports whether Complete has been called.
func (e *Entry) Completed() bool { return e.completed }

// TruncateQuery returns q as valid UTF-8 of at most max bytes, cut on a
// rune boundary. Invalid bytes become U+FFFD first.
func TruncateQuery(q string, max int) string {
	q = strings.ToValidUTF8(q, "�")
	if len(q) <= max {
		return q
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(q[cut]) {
		cut--
	}
	return q[:cut]
}
