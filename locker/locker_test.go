package locker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/migrate"
	"github.com/getpup/migrate/store"
)

func plannerOf(p *migrate.Plan) func(ctx context.Context) (*migrate.Plan, error) {
	return func(ctx context.Context) (*migrate.Plan, error) {
		return p, nil
	}
}

func noWork(ctx context.Context, p *migrate.Plan) error {
	return nil
}

func TestAcquire_EmptyPlanNeverTouchesLock(t *testing.T) {
	mock := &store.MockStore{}
	l := New(Config{Store: mock})

	p, err := l.Acquire(context.Background(), plannerOf(&migrate.Plan{Direction: migrate.DirectionUp}), noWork)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Zero(t, mock.LockCalls, "an empty plan must not lock")
	assert.Zero(t, mock.UnlockCalls)
}

func TestAcquire_RunsWorkUnderLock(t *testing.T) {
	mock := &store.MockStore{}
	l := New(Config{Store: mock})

	var ranWith *migrate.Plan
	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}

	p, err := l.Acquire(context.Background(), plannerOf(plan), func(ctx context.Context, p *migrate.Plan) error {
		ranWith = p
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, plan, p)
	assert.Equal(t, plan, ranWith)
	assert.Equal(t, 1, mock.LockCalls)
	assert.Equal(t, 1, mock.UnlockCalls, "lock released exactly once")
}

func TestAcquire_RetriesWhileHeldAndRederivesPlan(t *testing.T) {
	var lockAttempts int32
	mock := &store.MockStore{
		LockFunc: func(ctx context.Context) error {
			if atomic.AddInt32(&lockAttempts, 1) < 3 {
				return store.ErrLockHeld
			}
			return nil
		},
	}

	var waits []int
	var planCalls int
	l := New(Config{
		Store:     mock,
		RetryWait: time.Millisecond,
		MaxWait:   time.Second,
		Events:    &migrate.Events{OnWait: func(attempt int) { waits = append(waits, attempt) }},
	})

	p, err := l.Acquire(context.Background(), func(ctx context.Context) (*migrate.Plan, error) {
		planCalls++
		return &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}, nil
	}, noWork)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []int{1, 2}, waits, "each busy attempt reports its count")
	assert.Equal(t, 3, planCalls, "the plan is recomputed before every attempt")
	assert.Equal(t, 1, mock.UnlockCalls)
}

func TestAcquire_AnotherProcessFinishedTheWork(t *testing.T) {
	// First attempt finds the lock held; by the second attempt the other
	// process has applied everything, so the re-derived plan is empty and
	// the lock is never acquired.
	var lockAttempts int32
	mock := &store.MockStore{
		LockFunc: func(ctx context.Context) error {
			atomic.AddInt32(&lockAttempts, 1)
			return store.ErrLockHeld
		},
	}

	var planCalls int
	l := New(Config{Store: mock, RetryWait: time.Millisecond, MaxWait: time.Second})

	p, err := l.Acquire(context.Background(), func(ctx context.Context) (*migrate.Plan, error) {
		planCalls++
		if planCalls > 1 {
			return &migrate.Plan{Direction: migrate.DirectionUp}, nil
		}
		return &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}, nil
	}, noWork)

	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Equal(t, int32(1), atomic.LoadInt32(&lockAttempts))
	assert.Zero(t, mock.UnlockCalls)
}

func TestAcquire_TimesOut(t *testing.T) {
	mock := &store.MockStore{
		LockFunc: func(ctx context.Context) error { return store.ErrLockHeld },
	}
	l := New(Config{Store: mock, RetryWait: time.Millisecond, MaxWait: 5 * time.Millisecond})

	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}
	_, err := l.Acquire(context.Background(), plannerOf(plan), noWork)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Zero(t, mock.UnlockCalls, "timing out must not release someone else's lock")
}

func TestAcquire_FatalLockErrorIsNotRetried(t *testing.T) {
	fatal := errors.New("connection refused")
	mock := &store.MockStore{
		LockFunc: func(ctx context.Context) error { return fatal },
	}
	l := New(Config{Store: mock, RetryWait: time.Millisecond, MaxWait: time.Second})

	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}
	_, err := l.Acquire(context.Background(), plannerOf(plan), noWork)

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, mock.LockCalls)
}

func TestAcquire_UnlocksOnWorkFailure(t *testing.T) {
	mock := &store.MockStore{}
	l := New(Config{Store: mock})

	boom := errors.New("migration exploded")
	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}

	_, err := l.Acquire(context.Background(), plannerOf(plan), func(ctx context.Context, p *migrate.Plan) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, mock.UnlockCalls, "lock released even when work fails")
}

func TestAcquire_UnlockFailureIsAttached(t *testing.T) {
	unlockErr := errors.New("disk gone")
	mock := &store.MockStore{
		UnlockFunc: func(ctx context.Context) error { return unlockErr },
	}
	l := New(Config{Store: mock})

	boom := errors.New("migration exploded")
	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}

	_, err := l.Acquire(context.Background(), plannerOf(plan), func(ctx context.Context, p *migrate.Plan) error {
		return boom
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, unlockErr)
}

func TestAcquire_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mock := &store.MockStore{
		LockFunc: func(c context.Context) error {
			cancel()
			return store.ErrLockHeld
		},
	}
	l := New(Config{Store: mock, RetryWait: time.Minute, MaxWait: time.Hour})

	plan := &migrate.Plan{Direction: migrate.DirectionUp, Batch: []migrate.ID{"1_a"}}
	_, err := l.Acquire(ctx, plannerOf(plan), noWork)

	assert.ErrorIs(t, err, context.Canceled)
}
