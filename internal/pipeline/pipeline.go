// Package pipeline executes the provisioning stages as an explicit ordered
// sequence, so the "what runs after what fails" contract is visible and
// testable instead of implicit in branching.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/opsforge/scannerctl/internal/domain"
)

// Stage is one gated step of the workflow.
type Stage struct {
	Name string
	Run  func(ctx context.Context) error
}

type Pipeline struct {
	stages []Stage
	logger *slog.Logger
}

func New(logger *slog.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run executes stages in order and stops at the first error, wrapping it
// with the failing stage's name. An operator abort surfaces unwrapped so
// callers can tell a declined confirmation from a failure.
func (p *Pipeline) Run(ctx context.Context) error {
	for _, stage := range p.stages {
		p.logger.Info("stage starting", "stage", stage.Name)

		if err := stage.Run(ctx); err != nil {
			var aborted domain.ErrAborted
			if errors.As(err, &aborted) {
				p.logger.Info("stage aborted by operator", "stage", stage.Name)
				return aborted
			}
			p.logger.Error("stage failed", "stage", stage.Name, "err", err)
			return fmt.Errorf("%s: %w", stage.Name, err)
		}

		p.logger.Info("stage complete", "stage", stage.Name)
	}
	return nil
}
