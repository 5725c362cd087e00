package domain

import (
	"context"
	"fmt"
)

// Step is one named stage of a document pipeline.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context, doc T) error
}

// Pipeline runs validation and computation steps in a fixed order and stops
// at the first failure. It replaces lifecycle hooks: the order of steps is
// visible at the place the pipeline is built.
type Pipeline[T any] struct {
	steps []Step[T]
}

// NewPipeline creates a pipeline from steps.
func NewPipeline[T any](steps ...Step[T]) *Pipeline[T] {
	return &Pipeline[T]{steps: steps}
}

// Then appends a step and returns the pipeline.
func (p *Pipeline[T]) Then(name string, run func(ctx context.Context, doc T) error) *Pipeline[T] {
	p.steps = append(p.steps, Step[T]{Name: name, Run: run})
	return p
}

// Pure appends a step that cannot fail.
func (p *Pipeline[T]) Pure(name string, run func(doc T)) *Pipeline[T] {
	return p.Then(name, func(_ context.Context, doc T) error {
		run(doc)
		return nil
	})
}

// Run executes all steps in order.
// Errors are returned unchanged so AppError codes reach the caller.
func (p *Pipeline[T]) Run(ctx context.Context, doc T) error {
	for _, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.Name, err)
		}
		if err := s.Run(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Names lists step names in execution order.
func (p *Pipeline[T]) Names() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}
