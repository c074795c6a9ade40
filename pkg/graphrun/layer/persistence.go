package layer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/observability"
	"github.com/randalmurphal/graphrun/pkg/graphrun/pausestore"
	"github.com/randalmurphal/graphrun/pkg/graphrun/variable"
)

var errNotInitialized = errors.New("layer not initialized")

// ResumptionContext is saved next to the runtime state so a paused run can
// be resumed by another process.
type ResumptionContext struct {
	// RunID keys the saved records. Defaults to the run's execution id.
	RunID      string
	WorkflowID string
	// GenerateEntity is the caller's original request, stored as is.
	GenerateEntity json.RawMessage
}

// PauseStatePersistence saves the runtime state every time the run pauses.
// Each pause of a run is a new record in the repository.
type PauseStatePersistence struct {
	Base

	repo      pausestore.Repository
	resume    ResumptionContext
	codecOpts []variable.CodecOption
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu      sync.Mutex
	saved   []pausestore.Info
	lastErr error
}

// PersistenceOption configures PauseStatePersistence.
type PersistenceOption func(*PauseStatePersistence)

// WithPersistenceLogger sets the logger.
func WithPersistenceLogger(logger *slog.Logger) PersistenceOption {
	return func(p *PauseStatePersistence) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSnapshotOptions passes codec options, such as a secret sealer, to
// runtime.State.Dumps.
func WithSnapshotOptions(opts ...variable.CodecOption) PersistenceOption {
	return func(p *PauseStatePersistence) {
		p.codecOpts = append(p.codecOpts, opts...)
	}
}

// WithPersistenceMetrics records snapshot sizes.
func WithPersistenceMetrics(m *observability.Metrics) PersistenceOption {
	return func(p *PauseStatePersistence) {
		if m != nil {
			p.metrics = m
		}
	}
}

// NewPauseStatePersistence returns a layer saving pauses to repo.
func NewPauseStatePersistence(repo pausestore.Repository, rc ResumptionContext, opts ...PersistenceOption) *PauseStatePersistence {
	p := &PauseStatePersistence{
		repo:    repo,
		resume:  rc,
		logger:  slog.Default(),
		metrics: observability.DiscardMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnEvent saves a record on GraphRunPaused.
func (p *PauseStatePersistence) OnEvent(ctx context.Context, e event.Event) {
	paused, ok := e.(event.GraphRunPaused)
	if !ok {
		return
	}

	runID := p.resume.RunID
	if runID == "" {
		runID = paused.ExecutionID()
	}

	info, err := p.save(ctx, runID, paused)
	p.mu.Lock()
	p.lastErr = err
	if err == nil {
		p.saved = append(p.saved, info)
	}
	p.mu.Unlock()

	log := observability.ForRun(p.logger, runID)
	if err != nil {
		log.PauseNotSaved(err)
		return
	}
	log.PauseSaved(info.Sequence, info.Size)
	p.metrics.PauseSaved(ctx, info.Size)
}

func (p *PauseStatePersistence) save(ctx context.Context, runID string, paused event.GraphRunPaused) (pausestore.Info, error) {
	state := p.RuntimeState()
	if state == nil {
		return pausestore.Info{}, errNotInitialized
	}
	data, err := state.Dumps(p.codecOpts...)
	if err != nil {
		return pausestore.Info{}, err
	}

	reasons := make([]string, 0, len(paused.PausedNodes))
	for _, n := range paused.PausedNodes {
		if n.Reason != "" {
			reasons = append(reasons, n.Reason)
		}
	}

	return p.repo.Save(ctx, pausestore.Record{
		RunID:      runID,
		WorkflowID: p.resume.WorkflowID,
		State:      data,
		Context: pausestore.Context{
			GenerateEntity: p.resume.GenerateEntity,
			PausedNodes:    paused.PausedNodes,
			Reason:         strings.Join(reasons, "; "),
		},
	})
}

// Saved returns the records written so far, oldest first.
func (p *PauseStatePersistence) Saved() []pausestore.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pausestore.Info(nil), p.saved...)
}

// Err returns the error of the last save attempt, if any.
func (p *PauseStatePersistence) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
