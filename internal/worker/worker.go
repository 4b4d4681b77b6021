// Package worker runs tasks for accepted connections, each on its own goroutine.
package worker

import (
	"sync/atomic"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Option configures a Dispatcher.
type Option func(d *Dispatcher)

// WithMaxWorkers caps the number of tasks running at once. Submit blocks while
// the cap is reached. A value of zero or less means no cap.
func WithMaxWorkers(n int) Option {
	return func(d *Dispatcher) {
		d.maxWorkers = n
	}
}

// WithLogger sets the logger panics are reported on.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// Dispatcher is a dynamically sized pool of goroutines. Without a cap there is
// no backpressure: every submitted task starts immediately.
type Dispatcher struct {
	pool       *pool.Pool
	logger     *zap.Logger
	maxWorkers int
	inFlight   atomic.Int64
}

// New creates a new dispatcher.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = pool.New()
	if d.maxWorkers > 0 {
		d.pool = d.pool.WithMaxGoroutines(d.maxWorkers)
	}
	return d
}

// Submit runs the task concurrently with every other task. A panic in the task
// is recovered and logged.
func (d *Dispatcher) Submit(task func()) {
	d.pool.Go(func() {
		d.inFlight.Add(1)
		defer d.inFlight.Add(-1)

		var pc panics.Catcher
		pc.Try(task)
		if r := pc.Recovered(); r != nil {
			d.logger.Error("task panicked",
				zap.Any("panic", r.Value),
				zap.ByteString("stack", r.Stack),
			)
		}
	})
}

// InFlight returns the number of tasks currently running.
func (d *Dispatcher) InFlight() int {
	return int(d.inFlight.Load())
}

// Wait blocks until every submitted task has returned. The dispatcher must not
// be used after Wait.
func (d *Dispatcher) Wait() {
	d.pool.Wait()
}
