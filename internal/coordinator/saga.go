// Package coordinator runs multi-step operations as sagas: steps execute in
// order and, when one fails, the steps that already succeeded are
// compensated in reverse order.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
)

// Step is a single unit of work in a saga.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	id    string
	steps []Step
}

// NewOrchestrator builds a saga identified by id, which is only used for
// logging.
func NewOrchestrator(id string, steps ...Step) *Orchestrator {
	return &Orchestrator{id: id, steps: steps}
}

// Start runs the steps sequentially. The returned error wraps the failing
// step's error.
func (o *Orchestrator) Start(ctx context.Context) error {
	done := make([]Step, 0, len(o.steps))

	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing saga step", "saga_id", o.id, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.WarnContext(ctx, "saga step failed, rolling back",
				"saga_id", o.id,
				"step", step.Name(),
				"error", err,
			)
			o.rollback(ctx, done)
			return fmt.Errorf("%s: %w", step.Name(), err)
		}
		done = append(done, step)
	}
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) {
	// Compensation must run even when the request was cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate saga step",
				"saga_id", o.id,
				"step", step.Name(),
				"error", err,
			)
		}
	}
}
