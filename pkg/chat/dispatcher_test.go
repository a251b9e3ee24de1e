package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/pkg/reply"
)

func newTestDispatcher(t *testing.T, gen reply.Generator, timeout time.Duration) *Dispatcher {
	t.Helper()
	d := NewDispatcher(gen, Options{Timeout: timeout, Workers: 2, Logger: logger.Discard()})
	t.Cleanup(d.Close)
	return d
}

func TestDispatchReturnsReply(t *testing.T) {
	d := newTestDispatcher(t, reply.Func(func(_ context.Context, req reply.Request) (string, error) {
		return "hi " + req.Name, nil
	}), time.Second)

	out, err := d.Dispatch(context.Background(), reply.Request{Name: "Aria"})
	require.NoError(t, err)
	assert.Equal(t, "hi Aria", out)
}

func TestDispatchTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	// Ignores its context on purpose.
	d := newTestDispatcher(t, reply.Func(func(context.Context, reply.Request) (string, error) {
		<-block
		return "late", nil
	}), 20*time.Millisecond)

	start := time.Now()
	_, err := d.Dispatch(context.Background(), reply.Request{CharacterID: "c1"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationTimeout), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "c1", apperrors.GetMetadata(err)["character_id"])
}

func TestDispatchFailure(t *testing.T) {
	boom := errors.New("boom")
	d := newTestDispatcher(t, reply.Func(func(context.Context, reply.Request) (string, error) {
		return "", boom
	}), time.Second)

	_, err := d.Dispatch(context.Background(), reply.Request{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
	assert.ErrorIs(t, err, boom)
}

func TestDispatchEmptyReplyFails(t *testing.T) {
	d := newTestDispatcher(t, reply.Func(func(context.Context, reply.Request) (string, error) {
		return "   ", nil
	}), time.Second)

	_, err := d.Dispatch(context.Background(), reply.Request{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
}

func TestDispatchAfterClose(t *testing.T) {
	d := NewDispatcher(reply.NewMock(), Options{Logger: logger.Discard()})
	d.Close()
	d.Close()

	_, err := d.Dispatch(context.Background(), reply.Request{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))
}

func TestDispatchRunsConcurrently(t *testing.T) {
	var active, peak int32
	release := make(chan struct{})
	gen := reply.Func(func(context.Context, reply.Request) (string, error) {
		n := atomic.AddInt32(&active, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&active, -1)
		return "ok", nil
	})
	d := newTestDispatcher(t, gen, time.Second)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := d.Dispatch(context.Background(), reply.Request{})
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&peak) == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	for i := 0; i < 2; i++ {
		assert.NoError(t, <-errs)
	}
}
