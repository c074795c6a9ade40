package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/graphrun/pkg/graphrun/command"
	gerrors "github.com/randalmurphal/graphrun/pkg/graphrun/errors"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/graph"
	"github.com/randalmurphal/graphrun/pkg/graphrun/layer"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
	"github.com/randalmurphal/graphrun/pkg/graphrun/observability"
	"github.com/randalmurphal/graphrun/pkg/graphrun/runtime"
)

// errConsumerStopped is the cancellation cause when the caller stops
// ranging over the event stream.
var errConsumerStopped = errors.New("event consumer stopped")

// task is one node execution handed to a worker.
type task struct {
	node node.Node
	info event.NodeInfo
}

// message is sent from a worker to the dispatcher. A message carries
// either a retry notice or the final result of a task.
type message struct {
	task     task
	retry    *event.NodeRunRetry
	result   node.Result
	attempts int
}

// dispatcher holds the state of one run. Every field except workers is
// owned by the dispatcher goroutine.
type dispatcher struct {
	graph    *graph.Graph
	state    *runtime.State
	cfg      *engineConfig
	layers   *layer.Stack
	log      observability.RunLog
	logger   *slog.Logger
	layerCtx context.Context
	ctx      context.Context
	cancel   context.CancelCauseFunc
	yield    func(event.Event, error) bool

	work    chan task
	msgs    chan message
	group   errgroup.Group
	workers atomic.Int32

	ready    []string
	pending  *task
	inflight int
	dirty    bool

	aborted     bool
	abortReason string
	failure     error
	schedErr    error
	stopped     bool
}

func newDispatcher(e *Engine, parent, ctx context.Context, cancel context.CancelCauseFunc, yield func(event.Event, error) bool) *dispatcher {
	log := observability.ForRun(e.cfg.logger, e.cfg.executionID)
	return &dispatcher{
		graph:    e.graph,
		state:    e.state,
		cfg:      &e.cfg,
		layers:   e.layers,
		log:      log,
		logger:   log.Logger(),
		layerCtx: context.WithoutCancel(parent),
		ctx:      ctx,
		cancel:   cancel,
		yield:    yield,
		work:     make(chan task),
		msgs:     make(chan message, e.cfg.maxWorkers),
	}
}

func (d *dispatcher) meta() event.Meta {
	return event.NewMeta(d.cfg.executionID)
}

// stopping reports whether no further node may be dispatched.
func (d *dispatcher) stopping() bool {
	return d.aborted || d.failure != nil || d.schedErr != nil || d.stopped
}

// run drives the run to its terminal event.
func (d *dispatcher) run() {
	d.layers.Initialize(d.state, d.cfg.channel)
	d.layers.OnGraphStart(d.layerCtx)
	d.emit(event.GraphRunStarted{Meta: d.meta(), Reason: d.cfg.reason})

	d.admit()
	for range d.cfg.minWorkers {
		d.spawn()
	}

	ticker := time.NewTicker(d.cfg.pollInterval)
	defer ticker.Stop()
	done := d.ctx.Done()

	for {
		if d.dirty && len(d.ready) > 0 && !d.stopping() {
			d.pollCommands()
		}
		if d.inflight == 0 && (len(d.ready) == 0 || d.stopping()) {
			break
		}

		var (
			work chan<- task
			next task
		)
		if !d.stopping() && len(d.ready) > 0 {
			t, ok := d.next()
			if !ok {
				continue
			}
			work, next = d.work, t
			d.scale()
		}

		select {
		case work <- next:
			d.dispatched(next)
		case m := <-d.msgs:
			d.handle(m)
		case <-ticker.C:
			d.pollCommands()
		case <-done:
			d.abort(context.Cause(d.ctx).Error())
			done = nil
		}
	}

	close(d.work)
	_ = d.group.Wait()
	d.finish()
}

// admit schedules the first nodes of the run. A fresh state starts at the
// root; a restored state resumes the nodes whose pause was cleared.
func (d *dispatcher) admit() {
	states := d.state.NodeStates()
	if len(states) == 0 {
		d.enqueue(d.graph.RootID())
		return
	}
	for _, id := range slices.Sorted(maps.Keys(states)) {
		switch states[id] {
		case runtime.NodeReady:
			d.ready = append(d.ready, id)
		case runtime.NodePaused:
			if !d.state.IsPaused(id) {
				d.enqueue(id)
			}
		}
	}
}

func (d *dispatcher) enqueue(id string) {
	d.state.SetNodeState(id, runtime.NodeReady)
	d.ready = append(d.ready, id)
}

// next returns the task for the head of the ready queue.
func (d *dispatcher) next() (task, bool) {
	if d.pending != nil {
		return *d.pending, true
	}
	id := d.ready[0]
	n, ok := d.graph.Node(id)
	if !ok {
		d.ready = d.ready[1:]
		d.schedErr = &SchedulerError{NodeID: id, Err: ErrUnknownReadyNode}
		d.logger.Error("cannot schedule node", slog.String("node_id", id))
		return task{}, false
	}
	t := task{
		node: n,
		info: event.NodeInfo{
			NodeID:          id,
			NodeExecutionID: uuid.NewString(),
			NodeKind:        n.Kind(),
			NodeTitle:       n.Title(),
			StartAt:         time.Now().UTC(),
		},
	}
	d.pending = &t
	return t, true
}

func (d *dispatcher) dispatched(t task) {
	d.ready = d.ready[1:]
	d.pending = nil
	d.inflight++
	d.state.SetNodeState(t.info.NodeID, runtime.NodeRunning)
	d.state.IncrementNodeRunSteps()
	d.emit(event.NodeRunStarted{Meta: d.meta(), NodeInfo: t.info})
}

// scale adds a worker when the ready queue is deeper than the threshold.
func (d *dispatcher) scale() {
	if len(d.ready) > d.cfg.scaleUpThreshold && int(d.workers.Load()) < d.cfg.maxWorkers {
		d.spawn()
	}
}

func (d *dispatcher) spawn() {
	d.workers.Add(1)
	d.group.Go(d.worker)
}

// retire lets an idle worker exit while the pool is above its minimum.
func (d *dispatcher) retire() bool {
	for {
		n := d.workers.Load()
		if int(n) <= d.cfg.minWorkers {
			return false
		}
		if d.workers.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

func (d *dispatcher) pollCommands() {
	d.dirty = false
	cmds, err := d.cfg.channel.FetchCommands(d.ctx)
	if err != nil {
		d.logger.Warn("cannot fetch commands", slog.String("error", err.Error()))
		return
	}
	for _, c := range cmds {
		switch c.Type {
		case command.TypeAbort:
			d.abort(c.Reason)
		default:
			d.logger.Warn("ignoring command", slog.String("type", string(c.Type)))
		}
	}
}

// abort stops dispatching. Only the first reason is kept.
func (d *dispatcher) abort(reason string) {
	if d.aborted {
		return
	}
	d.aborted = true
	d.abortReason = reason
	d.logger.Info("graph run aborting", slog.String("reason", reason), slog.Int("in_flight", d.inflight))
}

// emit hands ev to the layers, then to the caller.
func (d *dispatcher) emit(ev event.Event) {
	d.layers.OnEvent(d.layerCtx, ev)
	d.dirty = true
	if d.stopped {
		return
	}
	if !d.yield(ev, nil) {
		d.stopped = true
		d.abort(errConsumerStopped.Error())
		d.cancel(errConsumerStopped)
	}
}

func (d *dispatcher) handle(m message) {
	if m.retry != nil {
		d.emit(*m.retry)
		return
	}
	d.inflight--
	d.complete(m)
	if !d.stopping() {
		d.pollCommands()
	}
}

// complete applies the final result of a node.
func (d *dispatcher) complete(m message) {
	t := m.task
	id := t.info.NodeID
	switch r := m.result.(type) {
	case node.Succeeded:
		if err := d.commit(t.node, r); err != nil {
			d.fail(t, node.Failed{Err: err, Inputs: r.Inputs}, m.attempts)
			return
		}
		d.state.AddTokens(r.Usage.TotalTokens)
		d.state.SetNodeState(id, runtime.NodeSucceeded)
		d.emit(event.NodeRunSucceeded{
			Meta:     d.meta(),
			NodeInfo: t.info,
			Inputs:   r.Inputs,
			Outputs:  r.Outputs,
			Handle:   r.ChosenHandle(),
			Usage:    r.Usage,
		})
		d.activate(id, r.ChosenHandle())

	case node.Paused:
		d.state.RegisterPausedNode(id, r.Reason)
		d.state.SetNodeState(id, runtime.NodePaused)
		d.emit(event.NodeRunPauseRequested{Meta: d.meta(), NodeInfo: t.info, Reason: r.Reason})

	case node.Failed:
		d.fail(t, r, m.attempts)

	default:
		d.fail(t, node.Failed{Err: fmt.Errorf("unexpected result %T", r)}, m.attempts)
	}
}

// commit writes a node's outputs to the pool as one batch and, for output
// nodes, to the graph outputs.
func (d *dispatcher) commit(n node.Node, r node.Succeeded) error {
	if err := d.state.Pool().Commit(n.ID(), r.Outputs); err != nil {
		return err
	}
	switch n.Kind() {
	case node.KindEnd:
		for _, k := range slices.Sorted(maps.Keys(r.Outputs)) {
			if err := d.state.SetOutput(k, r.Outputs[k]); err != nil {
				return err
			}
		}
	case node.KindAnswer:
		if text, ok := r.Outputs["answer"].(string); ok {
			d.state.AppendOutput("answer", text)
		}
	}
	return nil
}

// fail applies the node's error strategy.
func (d *dispatcher) fail(t task, f node.Failed, attempts int) {
	err := f.Cause()
	n := t.node
	switch n.ErrorStrategy() {
	case node.StrategyFailBranch:
		d.exception(t, f, errorOutputs(err), node.FailBranchHandle, attempts)
	case node.StrategyDefaultValue:
		outputs := n.DefaultValues()
		if outputs == nil {
			outputs = make(map[string]any, 2)
		}
		maps.Copy(outputs, errorOutputs(err))
		d.exception(t, f, outputs, node.SourceHandle, attempts)
	default:
		d.failRun(t, f, attempts)
	}
}

func (d *dispatcher) failRun(t task, f node.Failed, attempts int) {
	err := f.Cause()
	d.state.SetNodeState(t.info.NodeID, runtime.NodeFailed)
	d.emit(event.NodeRunFailed{
		Meta:     d.meta(),
		NodeInfo: t.info,
		Err:      err,
		Error:    err.Error(),
		Inputs:   f.Inputs,
	})
	if gerrors.IsCanceled(err) && d.ctx.Err() != nil {
		d.abort(context.Cause(d.ctx).Error())
		return
	}
	if d.failure != nil {
		return
	}
	d.failure = &NodeError{NodeID: t.info.NodeID, Kind: t.info.NodeKind, Attempts: attempts, Err: err}
}

// exception records a handled failure and continues along handle.
func (d *dispatcher) exception(t task, f node.Failed, outputs map[string]any, handle string, attempts int) {
	id := t.info.NodeID
	err := f.Cause()
	if cerr := d.state.Pool().Commit(id, outputs); cerr != nil {
		d.failRun(t, node.Failed{Err: errors.Join(err, cerr), Inputs: f.Inputs}, attempts)
		return
	}
	d.state.IncrementExceptions()
	d.state.SetNodeState(id, runtime.NodeException)
	d.emit(event.NodeRunException{
		Meta:     d.meta(),
		NodeInfo: t.info,
		Err:      err,
		Error:    err.Error(),
		Strategy: t.node.ErrorStrategy(),
		Outputs:  outputs,
		Handle:   handle,
	})
	d.activate(id, handle)
}

func errorOutputs(err error) map[string]any {
	return map[string]any{
		"error_message": err.Error(),
		"error_type":    gerrors.ErrorType(err),
	}
}

// activate takes the out edges of id matching handle and skips the rest,
// then settles every target whose in edges are all decided.
func (d *dispatcher) activate(id, handle string) {
	out := d.graph.OutEdges(id)
	for _, e := range out {
		if e.Handle() == handle {
			d.state.SetEdgeState(e.ID, runtime.EdgeTaken)
		} else {
			d.state.SetEdgeState(e.ID, runtime.EdgeSkipped)
		}
	}
	for _, e := range out {
		d.settle(e.Target)
	}
}

// settle makes id ready when one of its in edges was taken, skips it when
// all were skipped, and leaves it alone while any is undecided.
func (d *dispatcher) settle(id string) {
	if d.state.NodeState(id) != runtime.NodeUnknown {
		return
	}
	taken := false
	for _, e := range d.graph.InEdges(id) {
		switch d.state.EdgeState(e.ID) {
		case runtime.EdgeUnknown:
			return
		case runtime.EdgeTaken:
			taken = true
		}
	}
	if taken {
		d.enqueue(id)
		return
	}

	d.state.SetNodeState(id, runtime.NodeSkipped)
	out := d.graph.OutEdges(id)
	for _, e := range out {
		d.state.SetEdgeState(e.ID, runtime.EdgeSkipped)
	}
	for _, e := range out {
		d.settle(e.Target)
	}
}

// finish emits the terminal event and ends the layers.
func (d *dispatcher) finish() {
	outputs := d.state.Outputs()
	var endErr error
	switch {
	case d.schedErr != nil:
		endErr = d.schedErr
	case d.failure != nil:
		endErr = d.failure
		d.emit(event.GraphRunFailed{
			Meta:            d.meta(),
			Err:             d.failure,
			Error:           d.failure.Error(),
			ExceptionsCount: d.state.ExceptionsCount(),
		})
	case d.aborted:
		d.emit(event.GraphRunAborted{Meta: d.meta(), Reason: d.abortReason, Outputs: outputs})
	case len(d.state.PausedNodes()) > 0:
		d.emit(event.GraphRunPaused{Meta: d.meta(), PausedNodes: d.state.PausedNodes(), Outputs: outputs})
	default:
		d.emit(event.GraphRunSucceeded{Meta: d.meta(), Outputs: outputs})
	}

	if d.schedErr != nil && !d.stopped {
		d.yield(nil, d.schedErr)
	}
	d.layers.OnGraphEnd(d.layerCtx, endErr)
}
