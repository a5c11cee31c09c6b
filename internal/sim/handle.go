// Package sim holds the simulation handle threaded through a system's stages.
package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/san-kum/mdpipe/internal/config"
	"github.com/san-kum/mdpipe/internal/engine"
	"github.com/san-kum/mdpipe/internal/metrics"
	"github.com/san-kum/mdpipe/internal/report"
)

// maxChunk bounds the steps taken between cancellation checks.
const maxChunk = 1000

// Handle bundles everything needed to advance one system. It is owned by a
// single goroutine for the lifetime of its stage sequence.
type Handle struct {
	Engine     engine.Engine
	Topology   *engine.Topology
	System     *engine.System
	Integrator engine.Integrator
	Context    engine.Context

	// Ensemble mirrors the presence of a barostat in System.
	Ensemble config.Ensemble

	reporters []report.Reporter
	metrics   []metrics.Metric
}

// New binds the pieces of a simulation. The ensemble tag is derived from the
// system's force set.
func New(eng engine.Engine, top *engine.Topology, sys *engine.System, integ engine.Integrator, ctx engine.Context) *Handle {
	h := &Handle{
		Engine:     eng,
		Topology:   top,
		System:     sys,
		Integrator: integ,
		Context:    ctx,
		Ensemble:   config.EnsembleNVT,
	}
	if sys.FindBarostat() >= 0 {
		h.Ensemble = config.EnsembleNPT
	}
	return h
}

func (h *Handle) Platform() engine.Platform { return h.Context.Platform() }

func (h *Handle) AddReporter(r report.Reporter) { h.reporters = append(h.reporters, r) }
func (h *Handle) AddMetric(m metrics.Metric)    { h.metrics = append(h.metrics, m) }

func (h *Handle) Reporters() []report.Reporter { return h.reporters }
func (h *Handle) Metrics() []metrics.Metric    { return h.metrics }

// ClearReporters closes and detaches every reporter and metric. All reporters
// are closed even if one fails; the errors are joined.
func (h *Handle) ClearReporters() error {
	var errs []error
	for _, r := range h.reporters {
		if err := r.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s reporter: %w", r.Kind(), err))
		}
	}
	h.reporters = nil
	h.metrics = nil
	return errors.Join(errs...)
}

// SetIntegrator rebinds the context to integ and records it on the handle.
func (h *Handle) SetIntegrator(integ engine.Integrator) error {
	if err := h.Context.SetIntegrator(integ); err != nil {
		return err
	}
	h.Integrator = integ
	return nil
}

func (h *Handle) State() (engine.State, error) { return h.Context.State() }

func (h *Handle) Minimize(tol engine.Tolerance, maxIterations int) error {
	return h.Context.Minimize(tol, maxIterations)
}

// Step advances n steps, stopping at every step that is a multiple of a
// reporter's interval to hand it the state.
func (h *Handle) Step(ctx context.Context, n int) error {
	if n < 0 {
		return fmt.Errorf("step count must be >= 0, got %d", n)
	}
	if n == 0 {
		return nil
	}
	st, err := h.Context.State()
	if err != nil {
		return err
	}
	step := st.Step

	for remaining := n; remaining > 0; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk := h.nextChunk(step, remaining)
		if err := h.Context.Step(chunk); err != nil {
			return fmt.Errorf("step %d: %w", step, err)
		}
		step += int64(chunk)
		remaining -= chunk

		if err := h.report(step); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handle) nextChunk(step int64, remaining int) int {
	chunk := min(remaining, maxChunk)
	for _, r := range h.reporters {
		every := int64(r.Interval())
		if every <= 0 {
			continue
		}
		chunk = min(chunk, int(every-step%every))
	}
	return chunk
}

func (h *Handle) report(step int64) error {
	var due []report.Reporter
	for _, r := range h.reporters {
		if every := int64(r.Interval()); every > 0 && step%every == 0 {
			due = append(due, r)
		}
	}
	if len(due) == 0 {
		return nil
	}

	st, err := h.Context.State()
	if err != nil {
		return err
	}
	for _, m := range h.metrics {
		m.Observe(st)
	}
	for _, r := range due {
		if err := r.Report(st); err != nil {
			return fmt.Errorf("%s reporter at step %d: %w", r.Kind(), step, err)
		}
	}
	return nil
}

// Close releases reporters and the engine context.
func (h *Handle) Close() error {
	err := h.ClearReporters()
	if h.Context != nil {
		err = errors.Join(err, h.Context.Close())
	}
	return err
}
