// Package pausestore persists the state of paused graph runs so they can be
// resumed in another process.
//
// Every pause of a run is saved as a new Record with the next sequence
// number. Load returns the latest one.
package pausestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// Version is the current record format version.
// Increment when making breaking changes to the record structure.
const Version = 1

// Repository persists pause records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save stores rec as the next pause of rec.RunID. Sequence and
	// CreatedAt are assigned by the repository and returned in Info.
	Save(ctx context.Context, rec Record) (Info, error)

	// Load returns the latest record of a run.
	// Returns ErrNotFound if the run has no records.
	Load(ctx context.Context, runID string) (Record, error)

	// List returns metadata for every record of a run, ordered by sequence.
	// Returns an empty slice (not error) if the run has no records.
	List(ctx context.Context, runID string) ([]Info, error)

	// DeleteRun removes all records for a run.
	// Returns nil if the run has no records.
	DeleteRun(ctx context.Context, runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Context is what the caller needs, besides the runtime state, to resume
// a run.
type Context struct {
	// GenerateEntity is the opaque request that started the run.
	GenerateEntity json.RawMessage      `json:"generate_entity,omitempty"`
	PausedNodes    []runtime.PausedNode `json:"paused_nodes"`
	Reason         string               `json:"reason,omitempty"`
}

// Record is one persisted pause.
type Record struct {
	Version    int             `json:"version"`
	RunID      string          `json:"run_id"`
	WorkflowID string          `json:"workflow_id,omitempty"`
	Sequence   int             `json:"sequence"`
	State      json.RawMessage `json:"state"`
	Context    Context         `json:"context"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Info provides metadata without loading the full state.
type Info struct {
	RunID      string
	WorkflowID string
	Sequence   int
	CreatedAt  time.Time
	Size       int64
}

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates a run has no pause records.
	ErrNotFound = errors.New("pause record not found")

	// ErrStoreClosed indicates the repository has been closed.
	ErrStoreClosed = errors.New("pause store closed")

	// ErrVersionMismatch indicates a record written by an incompatible version.
	ErrVersionMismatch = errors.New("pause record version mismatch")

	// ErrInvalidRecord indicates a record that cannot be saved.
	ErrInvalidRecord = errors.New("invalid pause record")
)

// Validate checks the fields a repository relies on.
func (r Record) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidRecord)
	}
	if len(r.State) == 0 {
		return fmt.Errorf("%w: state is required", ErrInvalidRecord)
	}
	if !json.Valid(r.State) {
		return fmt.Errorf("%w: state is not valid JSON", ErrInvalidRecord)
	}
	return nil
}

// Marshal serializes a record to JSON.
func (r Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record, rejecting other format versions.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("decode pause record: %w", err)
	}
	if r.Version != Version {
		return Record{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, r.Version, Version)
	}
	return r, nil
}

// prepare stamps the fields a repository assigns on Save.
func prepare(rec Record, seq int, now time.Time) (Record, []byte, error) {
	rec.Version = Version
	rec.Sequence = seq
	rec.CreatedAt = now.UTC()
	data, err := rec.Marshal()
	if err != nil {
		return Record{}, nil, fmt.Errorf("encode pause record: %w", err)
	}
	return rec, data, nil
}

func infoOf(rec Record, size int) Info {
	return Info{
		RunID:      rec.RunID,
		WorkflowID: rec.WorkflowID,
		Sequence:   rec.Sequence,
		CreatedAt:  rec.CreatedAt,
		Size:       int64(size),
	}
}
