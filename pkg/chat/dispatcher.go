// Package chat runs reply generation off the caller's goroutine.
// Requests travel over a channel to a fixed set of workers; each request gets
// its own response channel and a bounded time budget.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/kittclouds/roleforge/internal/errors"
	"github.com/kittclouds/roleforge/internal/logger"
	"github.com/kittclouds/roleforge/pkg/reply"
)

// DefaultTimeout bounds a single generation when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a Dispatcher.
type Options struct {
	Timeout time.Duration
	Workers int
	Logger  *logger.Logger
}

// Dispatcher hands reply requests to worker goroutines.
type Dispatcher struct {
	gen     reply.Generator
	timeout time.Duration
	log     *logger.Logger

	jobs      chan job
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type job struct {
	ctx context.Context
	req reply.Request
	out chan result
}

type result struct {
	text string
	err  error
}

// NewDispatcher starts the workers. Call Close to stop them.
func NewDispatcher(gen reply.Generator, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.Global()
	}

	d := &Dispatcher{
		gen:     gen,
		timeout: opts.Timeout,
		log:     opts.Logger,
		jobs:    make(chan job),
		quit:    make(chan struct{}),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Dispatch sends req to a worker and waits for the reply.
// Expiry of the dispatcher timeout yields a GENERATION_TIMEOUT error; any
// other failure, including an empty reply, yields GENERATION_FAILED.
func (d *Dispatcher) Dispatch(ctx context.Context, req reply.Request) (string, error) {
	j := job{ctx: ctx, req: req, out: make(chan result, 1)}

	select {
	case d.jobs <- j:
	case <-d.quit:
		return "", apperrors.New(apperrors.CodeGenerationFailed, "dispatcher closed")
	case <-ctx.Done():
		return "", apperrors.Wrap(ctx.Err(), apperrors.CodeGenerationFailed, "request abandoned")
	}

	select {
	case r := <-j.out:
		return r.text, r.err
	case <-ctx.Done():
		return "", apperrors.Wrap(ctx.Err(), apperrors.CodeGenerationFailed, "request abandoned")
	}
}

// Close stops accepting requests and waits for in-progress work.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.quit)
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.quit:
			return
		case j := <-d.jobs:
			j.out <- d.run(j)
		}
	}
}

// run enforces the timeout even when the generator ignores its context.
func (d *Dispatcher) run(j job) result {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		text, err := d.gen.Generate(ctx, j.req)
		done <- result{text: text, err: err}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		r = result{err: ctx.Err()}
	}

	log := d.log.WithCharacter(j.req.CharacterID)
	switch {
	case r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && j.ctx.Err() == nil:
		log.Warn("reply generation timed out", "timeout", d.timeout.String())
		return result{err: apperrors.Newf(apperrors.CodeGenerationTimeout,
			"no reply within %s", d.timeout).WithMetadata("character_id", j.req.CharacterID)}
	case r.err != nil:
		log.LogError(r.err, "reply generation failed")
		return result{err: apperrors.Wrap(r.err, apperrors.CodeGenerationFailed, "generate reply")}
	case strings.TrimSpace(r.text) == "":
		return result{err: apperrors.New(apperrors.CodeGenerationFailed, "empty reply")}
	}
	return r
}
