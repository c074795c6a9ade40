package pausestore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps pause records in process memory. It is meant for tests
// and single-process deployments; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string]*history
	closed bool
}

// history is the ordered pause log of one run.
type history struct {
	infos []Info
	blobs [][]byte
}

func (h *history) next() int {
	if len(h.infos) == 0 {
		return 1
	}
	return h.infos[len(h.infos)-1].Sequence + 1
}

var _ Repository = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: map[string]*history{}}
}

// read runs fn under the read lock, failing once the store is closed.
func (m *MemoryStore) read(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrStoreClosed
	}
	return fn()
}

// write runs fn under the write lock, failing once the store is closed.
func (m *MemoryStore) write(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrStoreClosed
	}
	return fn()
}

// Save appends rec to its run's history.
func (m *MemoryStore) Save(_ context.Context, rec Record) (Info, error) {
	if err := rec.Validate(); err != nil {
		return Info{}, err
	}
	var info Info
	err := m.write(func() error {
		h, ok := m.runs[rec.RunID]
		if !ok {
			h = &history{}
			m.runs[rec.RunID] = h
		}
		stamped, blob, err := prepare(rec, h.next(), time.Now())
		if err != nil {
			return err
		}
		info = infoOf(stamped, len(blob))
		h.infos = append(h.infos, info)
		h.blobs = append(h.blobs, blob)
		return nil
	})
	return info, err
}

// Load decodes the newest record of runID.
func (m *MemoryStore) Load(_ context.Context, runID string) (Record, error) {
	var blob []byte
	err := m.read(func() error {
		h := m.runs[runID]
		if h == nil || len(h.blobs) == 0 {
			return ErrNotFound
		}
		blob = h.blobs[len(h.blobs)-1]
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return Unmarshal(blob)
}

// List returns the run's records, oldest first. An unknown run has none.
func (m *MemoryStore) List(_ context.Context, runID string) ([]Info, error) {
	infos := []Info{}
	err := m.read(func() error {
		if h := m.runs[runID]; h != nil {
			infos = slices.Clone(h.infos)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// DeleteRun forgets every record of runID.
func (m *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	return m.write(func() error {
		delete(m.runs, runID)
		return nil
	})
}

// Close drops all records. Later calls fail with ErrStoreClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed, m.runs = true, nil
	m.mu.Unlock()
	return nil
}

// Len counts records across all runs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, h := range m.runs {
		n += len(h.infos)
	}
	return n
}
