package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeChecker struct {
	name  string
	err   error
	delay time.Duration
}

func (f fakeChecker) Name() string { return f.name }

func (f fakeChecker) HealthCheck(ctx context.Context) error {
	select {
	case <-time.After(f.delay):
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCheckAll(t *testing.T) {
	reg := NewRegistry(50 * time.Millisecond)
	reg.Register(fakeChecker{name: "postgres"})
	reg.Register(fakeChecker{name: "redis", err: errors.New("connection refused")})
	reg.Register(fakeChecker{name: "replica", delay: time.Second})

	results := reg.CheckAll(context.Background())

	assert.Equal(t, []string{"postgres", "redis", "replica"}, reg.List())
	assert.NoError(t, results["postgres"])
	assert.EqualError(t, results["redis"], "connection refused")
	assert.ErrorIs(t, results["replica"], context.DeadlineExceeded)
	assert.False(t, Ready(results))
}

func TestReady_Empty(t *testing.T) {
	reg := NewRegistry(0)
	assert.True(t, Ready(reg.CheckAll(context.Background())))
}

func TestMonitor_TracksTransitions(t *testing.T) {
	reg := NewRegistry(50 * time.Millisecond)
	flaky := &toggleChecker{name: "redis"}
	reg.Register(flaky)

	m := NewMonitor(reg, time.Hour)
	m.check(context.Background())
	assert.True(t, m.healthy["redis"])

	flaky.err = errors.New("connection refused")
	m.check(context.Background())
	assert.False(t, m.healthy["redis"])

	flaky.err = nil
	m.check(context.Background())
	assert.True(t, m.healthy["redis"])
}

type toggleChecker struct {
	name string
	err  error
}

func (c *toggleChecker) Name() string { return c.name }

func (c *toggleChecker) HealthCheck(context.Context) error { return c.err }
