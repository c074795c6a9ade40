package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	gerrors "github.com/randalmurphal/graphrun/pkg/graphrun/errors"
	"github.com/randalmurphal/graphrun/pkg/graphrun/event"
	"github.com/randalmurphal/graphrun/pkg/graphrun/node"
)

// worker executes tasks until the work channel closes or it retires after
// idling above the minimum pool size.
func (d *dispatcher) worker() error {
	idle := time.NewTimer(d.cfg.scaleDownIdle)
	defer idle.Stop()

	for {
		select {
		case t, ok := <-d.work:
			if !ok {
				d.workers.Add(-1)
				return nil
			}
			d.msgs <- d.execute(t)
			idle.Reset(d.cfg.scaleDownIdle)
		case <-idle.C:
			if d.retire() {
				return nil
			}
			idle.Reset(d.cfg.scaleDownIdle)
		}
	}
}

// execute runs a node under its retry policy.
func (d *dispatcher) execute(t task) message {
	n := t.node
	nlog := d.log.Node(n.ID(), string(n.Kind()))
	nlog.Started()

	policy := n.RetryConfig().Policy()
	policy.OnRetry = func(attempt int, err error, wait time.Duration) {
		nlog.Retrying(attempt, wait, err)
		d.msgs <- message{task: t, retry: &event.NodeRunRetry{
			Meta:     d.meta(),
			NodeInfo: t.info,
			Err:      err,
			Error:    err.Error(),
			Attempt:  attempt,
			Backoff:  wait,
		}}
	}

	out := gerrors.Do(d.ctx, policy, func(ctx context.Context) (node.Result, error) {
		return d.invoke(ctx, n)
	})
	if out.Err == nil {
		nlog.Succeeded(out.Attempts)
		return message{task: t, result: out.Value, attempts: out.Attempts}
	}
	nlog.Failed(out.Attempts, out.Err)

	var inputs map[string]any
	if f, ok := out.Value.(node.Failed); ok {
		inputs = f.Inputs
	}
	return message{task: t, result: node.Failed{Err: out.Err, Inputs: inputs}, attempts: out.Attempts}
}

// invoke runs one attempt, converting panics and Failed results to errors.
func (d *dispatcher) invoke(ctx context.Context, n node.Node) (res node.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &PanicError{
				NodeID: n.ID(),
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	res = n.Run(ctx, d.state)
	switch r := res.(type) {
	case nil:
		return nil, fmt.Errorf("node %s returned no result", n.ID())
	case node.Failed:
		return r, r.Cause()
	}
	return res, nil
}
