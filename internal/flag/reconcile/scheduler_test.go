package reconcile

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	id "lted/pkg/domain"
	"lted/pkg/requestcontext"
)

type countingRunner struct {
	calls  atomic.Int32
	system atomic.Bool
	err    error
}

func (r *countingRunner) Run(ctx context.Context, _ Request) (*Result, error) {
	r.calls.Add(1)
	if actor, ok := requestcontext.Actor(ctx); ok && actor.Role == id.RoleSystem {
		r.system.Store(true)
	}
	return &Result{}, r.err
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &countingRunner{}
	sched := NewScheduler(runner, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, runner.system.Load(), "scheduled runs act as the system actor")
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	runner := &countingRunner{err: errors.New("db unavailable")}
	sched := NewScheduler(runner, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	err := NewScheduler(&countingRunner{}, 0, nil).Start(context.Background())
	assert.Error(t, err)
}
