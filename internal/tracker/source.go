package tracker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/lucasnoah/cycleplan/internal/diag"
)

// Source reads planning inputs from an issue tracker.
type Source interface {
	ActiveCycle(ctx context.Context) (*Cycle, error)
	ClosedCycles(ctx context.Context, n int) ([]Cycle, error)
	Backlog(ctx context.Context) ([]WorkItem, error)
	Roster(ctx context.Context) (Roster, error)
}

// AsOfer is implemented by sources that carry their own capture time.
type AsOfer interface {
	AsOf() time.Time
}

// GatherOpts bounds and tunes Gather.
type GatherOpts struct {
	Timeout      time.Duration
	ClosedCycles int
	Now          func() time.Time
}

const stageName = "tracker"

// Gather reads every input from src and freezes it into a Snapshot. Each
// fetch is bounded by opts.Timeout. Failures never abort: the affected part
// falls back to its empty default and a data_unavailable warning is returned.
func Gather(ctx context.Context, src Source, opts GatherOpts) (*Snapshot, []diag.Warning) {
	var warnings []diag.Warning
	warn := func(part string, err error) {
		warnings = append(warnings, diag.FromError(stageName, fmt.Errorf("%s: %w", part, err)))
	}

	snap := &Snapshot{}
	if a, ok := src.(AsOfer); ok {
		snap.AsOf = a.AsOf()
	} else if opts.Now != nil {
		snap.AsOf = opts.Now()
	} else {
		snap.AsOf = time.Now().UTC()
	}

	if c, err := fetch(ctx, opts.Timeout, src.ActiveCycle); err != nil {
		warn("active cycle", err)
	} else {
		snap.ActiveCycle = c
	}

	closed, err := fetch(ctx, opts.Timeout, func(ctx context.Context) ([]Cycle, error) {
		return src.ClosedCycles(ctx, opts.ClosedCycles)
	})
	if err != nil {
		warn("closed cycles", err)
	} else {
		snap.ClosedCycles = closed
	}

	if items, err := fetch(ctx, opts.Timeout, src.Backlog); err != nil {
		warn("backlog", err)
	} else if len(items) == 0 {
		warn("backlog", fmt.Errorf("tracker returned no items: %w", diag.ErrDataUnavailable))
	} else {
		snap.Backlog = items
	}

	if r, err := fetch(ctx, opts.Timeout, src.Roster); err != nil {
		warn("roster", err)
	} else {
		snap.Roster = r
	}

	return snap, warnings
}

type result[T any] struct {
	val T
	err error
}

// fetch runs fn under a timeout. A fetch that outlives the timeout is
// abandoned and reported as unavailable.
func fetch[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return r.val, fmt.Errorf("timed out after %s: %w", timeout, diag.ErrDataUnavailable)
		}
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("timed out after %s: %w", timeout, diag.ErrDataUnavailable)
	}
}

// WriteSnapshot encodes s as indented JSON.
func WriteSnapshot(w io.Writer, s *Snapshot) error {
	return encodeJSON(w, s)
}
