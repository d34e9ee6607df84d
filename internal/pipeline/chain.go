package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/IshaanNene/rallybrief/internal/types"
)

// ErrSkipped is returned by a stage that had nothing to do.
var ErrSkipped = errors.New("stage skipped")

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusSkipped StageStatus = "skipped"
	StatusFailed  StageStatus = "failed"
)

// Stage is one step of a briefing run. Stages share state through the run.
type Stage interface {
	// Name returns the stage's identifier.
	Name() string

	// Run performs the stage. Return ErrSkipped when there is nothing to do.
	Run(ctx context.Context, run *BriefingReport) error
}

// StageResult records how a stage went.
type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
	Reason   string        `json:"reason,omitempty"`
}

type optionalStage struct{ Stage }

// Optional marks a stage whose failure does not stop the run.
func Optional(s Stage) Stage { return optionalStage{s} }

// Chain runs stages in order.
type Chain struct {
	stages []Stage
	name   string
	logger *slog.Logger
}

// NewChain creates an empty chain labelled name in logs and metrics.
func NewChain(name string, logger *slog.Logger) *Chain {
	return &Chain{
		name:   name,
		logger: logger.With("component", "chain", "pipeline", name),
	}
}

// Use appends a stage.
func (c *Chain) Use(s Stage) {
	c.stages = append(c.stages, s)
	c.logger.Debug("stage added", "name", s.Name(), "position", len(c.stages))
}

// Len returns the number of stages.
func (c *Chain) Len() int { return len(c.stages) }

// Process runs every stage in order. A failed required stage stops the run
// and is returned as a *types.StageError.
func (c *Chain) Process(ctx context.Context, run *BriefingReport, observe func(stage string, d time.Duration, err error)) error {
	for _, s := range c.stages {
		if err := ctx.Err(); err != nil {
			return &types.StageError{Stage: s.Name(), Err: err}
		}

		_, optional := s.(optionalStage)
		start := time.Now()
		err := s.Run(ctx, run)
		d := time.Since(start)

		res := StageResult{Name: s.Name(), Status: StatusOK, Duration: d}
		switch {
		case err == nil:
		case errors.Is(err, ErrSkipped):
			res.Status = StatusSkipped
			res.Reason = skipReason(err)
			err = nil
		default:
			res.Status = StatusFailed
			res.Error = err.Error()
		}
		run.Stages = append(run.Stages, res)
		if observe != nil {
			observe(s.Name(), d, err)
		}

		log := c.logger.With("run_id", run.RunID, "stage", s.Name(), "duration", d)
		switch res.Status {
		case StatusSkipped:
			log.Info("stage skipped", "reason", res.Reason)
		case StatusFailed:
			if optional {
				log.Warn("optional stage failed", "error", err)
				continue
			}
			log.Error("stage failed", "error", err)
			return &types.StageError{Stage: s.Name(), Err: err}
		default:
			log.Info("stage complete")
		}
	}
	return nil
}

type skipError struct{ reason string }

func (e skipError) Error() string        { return ErrSkipped.Error() + ": " + e.reason }
func (e skipError) Is(target error) bool { return target == ErrSkipped }

// Skip returns an ErrSkipped carrying a reason.
func Skip(reason string) error { return skipError{reason: reason} }

func skipReason(err error) string {
	var se skipError
	if errors.As(err, &se) {
		return se.reason
	}
	return ""
}
