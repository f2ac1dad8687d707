package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/plugstore/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/plugstore/internal/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQueue(t *testing.T, size int) *Queue {
	t.Helper()
	q := New(size, nil, monitoring.NewMetrics(prometheus.NewRegistry()))
	t.Cleanup(func() { _ = q.Close(context.Background()) })
	return q
}

func TestFIFOOrder(t *testing.T) {
	q := newQueue(t, 16)

	var (
		mu    sync.Mutex
		order []int
		waits []<-chan error
	)
	for i := 0; i < 50; i++ {
		i := i
		ch, err := q.Submit(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		waits = append(waits, ch)
	}
	for _, ch := range waits {
		require.NoError(t, <-ch)
	}

	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestTasksNeverOverlap(t *testing.T) {
	q := newQueue(t, 8)

	var (
		running int
		maxSeen int
		mu      sync.Mutex
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = Run(context.Background(), q, func() error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}

func TestDoReturnsValueAndError(t *testing.T) {
	q := newQueue(t, 4)

	v, err := Do(context.Background(), q, func() (string, error) { return "salt", nil })
	require.NoError(t, err)
	assert.Equal(t, "salt", v)

	boom := errors.New("boom")
	v, err = Do(context.Background(), q, func() (string, error) { return "ignored", boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, v)
}

func TestDoContextCancelled(t *testing.T) {
	q := newQueue(t, 4)

	release := make(chan struct{})
	_, err := q.Submit(func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := make(chan struct{})
	_, err = Do(ctx, q, func() (int, error) {
		close(ran)
		return 1, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, types.ErrOutcomeUnknown)

	close(release)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("accepted task did not run")
	}
}

func TestPanicBecomesError(t *testing.T) {
	q := newQueue(t, 4)

	err := Run(context.Background(), q, func() error { panic("bad task") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad task")

	// worker survives
	require.NoError(t, Run(context.Background(), q, func() error { return nil }))
}

func TestCloseDrainsThenRejects(t *testing.T) {
	q := New(8, nil, nil)

	var count int
	var waits []<-chan error
	for i := 0; i < 5; i++ {
		ch, err := q.Submit(func() error {
			time.Sleep(time.Millisecond)
			count++
			return nil
		})
		require.NoError(t, err)
		waits = append(waits, ch)
	}

	require.NoError(t, q.Close(context.Background()))
	for _, ch := range waits {
		require.NoError(t, <-ch)
	}
	assert.Equal(t, 5, count)
	assert.Equal(t, 0, q.Len())

	_, err := q.Submit(func() error { return nil })
	assert.ErrorIs(t, err, types.ErrClosed)

	// idempotent
	assert.NoError(t, q.Close(context.Background()))
}

func TestCloseRespectsContext(t *testing.T) {
	q := New(2, nil, nil)

	release := make(chan struct{})
	_, err := q.Submit(func() error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Close(ctx), context.DeadlineExceeded)

	close(release)
	assert.NoError(t, q.Close(context.Background()))
}
