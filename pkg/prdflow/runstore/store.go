// Package runstore provides persistent conversion-run history.
package runstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store persists conversion runs.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a run. Overwrites if a run with the same ID exists.
	Save(run *Run) error

	// Get retrieves a run by id.
	// Returns ErrNotFound if the run doesn't exist.
	Get(id string) (*Run, error)

	// List returns the most recent runs, newest first. A limit of 0
	// means no limit. Returns empty slice (not error) when the store
	// is empty.
	List(limit int) ([]Info, error)

	// Delete removes a run. Returns nil if the run doesn't exist.
	Delete(id string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Run is one recorded conversion.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	InputHash string    `json:"input_hash"`
	Strategy  string    `json:"strategy"`
	Errors    int       `json:"errors"`
	Warnings  int       `json:"warnings"`
	Fixes     int       `json:"fixes"`
	Duration  float64   `json:"duration_ms"`
	CreatedAt time.Time `json:"created_at"`

	// Document is the composed output JSON.
	Document []byte `json:"document,omitempty"`
}

// Info provides run metadata without loading the document blob.
type Info struct {
	ID        string
	Source    string
	InputHash string
	Strategy  string
	Errors    int
	Warnings  int
	Fixes     int
	Duration  float64
	CreatedAt time.Time
	Size      int64
}

// Sentinel errors for run-history operations.
var (
	// ErrNotFound indicates a run doesn't exist.
	ErrNotFound = errors.New("run not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("run store closed")
)

// NewRun creates a run record for the given input. The id is a fresh
// UUID and the input hash is the hex SHA-256 of the source text.
func NewRun(source, input string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Source:    source,
		InputHash: HashInput(input),
		CreatedAt: time.Now().UTC(),
	}
}

// HashInput returns the hex SHA-256 digest of input.
func HashInput(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
