package pacer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
)

func TestPacerDue(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock, 1000, 10*time.Millisecond)

	assert.Zero(t, p.Due())
	mock.Add(50 * time.Millisecond)
	assert.Equal(t, uint64(50), p.Due())
}

func TestPacerRunSteps(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock, 1000, 10*time.Millisecond)

	stop := errors.New("stop")
	var total uint64
	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(context.Background(), func(_ context.Context, n uint64) (uint64, error) {
			total += n
			if total >= 30 {
				return n, stop
			}
			return n, nil
		})
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-errc:
			assert.ErrorIs(t, err, stop)
			assert.GreaterOrEqual(t, total, uint64(30))
			assert.Equal(t, total, p.Done())
			return
		case <-deadline:
			t.Fatal("pacer did not step")
		default:
			mock.Add(10 * time.Millisecond)
		}
	}
}

func TestPacerRunCancelled(t *testing.T) {
	p := New(clock.NewMock(), 1000, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Run(ctx, func(_ context.Context, n uint64) (uint64, error) { return n, nil }), context.Canceled)
}

func TestPacerCountsCappedSteps(t *testing.T) {
	mock := clock.NewMock()
	p := New(mock, 1000, 10*time.Millisecond)

	// The step stops short of what is owed, as a run with a cycle limit does
	const limit = 25
	done := errors.New("limit")
	var total uint64
	errc := make(chan error, 1)
	go func() {
		errc <- p.Run(context.Background(), func(_ context.Context, n uint64) (uint64, error) {
			n = min(n, limit-total)
			total += n
			if total == limit {
				return n, done
			}
			return n, nil
		})
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-errc:
			assert.ErrorIs(t, err, done)
			assert.Equal(t, uint64(limit), p.Done())
			return
		case <-deadline:
			t.Fatal("pacer did not step")
		default:
			mock.Add(10 * time.Millisecond)
		}
	}
}
