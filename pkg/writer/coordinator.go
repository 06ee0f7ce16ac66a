// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package writer

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
	"github.com/matrixorigin/tntconnector/pkg/tntclient"
)

// DefaultPollInterval is how often AwaitDrain checks the counters.
const DefaultPollInterval = 100 * time.Millisecond

// Operation dispatches one asynchronous write. An error means the write
// was never dispatched.
type Operation func() (tntclient.Future, error)

// Stats is a snapshot of the counters.
type Stats struct {
	Total      uint64
	Active     uint64
	Failed     uint64
	Rejected   uint64
	FirstError error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMode sets the write mode used as the metrics label.
func WithMode(mode string) Option {
	return func(c *Coordinator) {
		c.mode = mode
	}
}

// WithSpace names the target space in errors and logs.
func WithSpace(space string) Option {
	return func(c *Coordinator) {
		c.space = space
	}
}

// WithMetrics sets the collectors updated by the coordinator.
func WithMetrics(metrics *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// counters of one open/close cycle. Completions keep the counters they were
// submitted with, so writes abandoned by a failed drain never touch the
// counters of the next cycle.
type counters struct {
	total    atomic.Uint64
	active   atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
	// set once, before failed is incremented
	firstError atomic.Pointer[failure]
}

type failure struct {
	err error
}

func (c *counters) firstErr() error {
	if f := c.firstError.Load(); f != nil {
		return f.err
	}
	return nil
}

// Coordinator tracks many concurrently dispatched writes without blocking
// the producer on any of them. Submit is called by one producer, the
// completions run on their own goroutines.
type Coordinator struct {
	logger  *zap.Logger
	mode    string
	space   string
	metrics *Metrics

	counters atomic.Pointer[counters]
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{}
	for _, opt := range opts {
		opt(c)
	}
	c.adjust()
	c.counters.Store(&counters{})
	return c
}

func (c *Coordinator) adjust() {
	c.logger = logutil.Adjust(c.logger).Named("writer")
	if c.mode == "" {
		c.mode = "unknown"
	}
}

// Reset zeroes every counter and clears the first error.
func (c *Coordinator) Reset() {
	c.counters.Store(&counters{})
}

// Submit dispatches op and registers its completion. The returned error is
// not nil only when op failed synchronously, in which case the write is
// not counted as submitted.
func (c *Coordinator) Submit(op Operation) error {
	cs := c.counters.Load()
	cs.total.Add(1)
	cs.active.Add(1)
	c.metrics.onSubmit(c.mode)

	future, err := op()
	if err == nil && future == nil {
		err = moerr.NewInternalError(context.TODO(), "write dispatched without a future")
	}
	if err != nil {
		cs.active.Add(^uint64(0))
		cs.total.Add(^uint64(0))
		cs.rejected.Add(1)
		c.metrics.onReject(c.mode)
		return moerr.NewWriteRejected(context.TODO(), err, c.space)
	}
	c.metrics.onDispatch(c.mode)

	go c.complete(cs, future)
	return nil
}

func (c *Coordinator) complete(cs *counters, future tntclient.Future) {
	err := future.Wait()
	if err != nil {
		werr := moerr.NewWriteFailed(context.TODO(), err, c.space)
		if cs.firstError.CompareAndSwap(nil, &failure{err: werr}) {
			c.logger.Error("write failed",
				zap.String("space", c.space),
				zap.Error(err))
		} else {
			c.logger.Debug("write failed",
				zap.String("space", c.space),
				zap.Error(err))
		}
		cs.failed.Add(1)
	}
	c.metrics.onComplete(c.mode, err)
	cs.active.Add(^uint64(0))
}

// AwaitDrain blocks until every dispatched write has completed or any of
// them has failed, checking every pollInterval. Writes still in flight
// after a failure are abandoned.
func (c *Coordinator) AwaitDrain(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	start := time.Now()
	defer func() {
		c.metrics.observeDrain(c.mode, time.Since(start))
	}()

	cs := c.counters.Load()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if failed := cs.failed.Load(); failed > 0 {
			err := moerr.NewDrainFailed(ctx, failed, cs.firstErr())
			c.logger.Error("in-flight writes failed",
				zap.String("space", c.space),
				zap.Uint64("failed", failed),
				zap.Uint64("active", cs.active.Load()),
				zap.Uint64("total", cs.total.Load()),
				zap.Error(err))
			return err
		}
		if cs.active.Load() == 0 {
			c.logger.Debug("in-flight writes drained",
				zap.String("space", c.space),
				zap.Uint64("total", cs.total.Load()),
				zap.Duration("cost", time.Since(start)))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats returns a snapshot of the counters. The counters are loaded one by
// one, so the snapshot is not atomic while writes are being submitted.
func (c *Coordinator) Stats() Stats {
	cs := c.counters.Load()
	// active before total, total only grows ahead of active in Submit
	active := cs.active.Load()
	total := cs.total.Load()
	if active > total {
		// a rejection was undone between the two loads
		active = total
	}
	// failed before firstError, so a failure is never seen without its cause
	failed := cs.failed.Load()
	return Stats{
		Total:      total,
		Active:     active,
		Failed:     failed,
		Rejected:   cs.rejected.Load(),
		FirstError: cs.firstErr(),
	}
}
