package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type doc struct {
	trail []string
}

func TestPipeline_RunsInOrder(t *testing.T) {
	p := NewPipeline[*doc]().
		Pure("first", func(d *doc) { d.trail = append(d.trail, "first") }).
		Then("second", func(_ context.Context, d *doc) error {
			d.trail = append(d.trail, "second")
			return nil
		})

	d := &doc{}
	assert.NoError(t, p.Run(context.Background(), d))
	assert.Equal(t, []string{"first", "second"}, d.trail)
	assert.Equal(t, []string{"first", "second"}, p.Names())
}

func TestPipeline_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline[*doc]().
		Then("fail", func(context.Context, *doc) error { return boom }).
		Pure("never", func(d *doc) { d.trail = append(d.trail, "never") })

	d := &doc{}
	err := p.Run(context.Background(), d)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, d.trail)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline[*doc]().Pure("step", func(*doc) {})
	assert.ErrorIs(t, p.Run(ctx, &doc{}), context.Canceled)
}
