package worker_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/SpatiumPortae/peershare/internal/worker"
	"github.com/stretchr/testify/assert"
)

func TestDispatcher(t *testing.T) {
	t.Run("tasks run concurrently", func(t *testing.T) {
		const tasks = 32
		d := worker.New()

		// Every task blocks until all of them have started, which only
		// completes if none of them waits for another to finish.
		var started sync.WaitGroup
		started.Add(tasks)
		release := make(chan struct{})
		for i := 0; i < tasks; i++ {
			d.Submit(func() {
				started.Done()
				<-release
			})
		}
		allStarted := make(chan struct{})
		go func() {
			started.Wait()
			close(allStarted)
		}()
		select {
		case <-allStarted:
		case <-time.After(5 * time.Second):
			t.Fatal("tasks were not run concurrently")
		}
		assert.Equal(t, tasks, d.InFlight())
		close(release)
		d.Wait()
		assert.Equal(t, 0, d.InFlight())
	})

	t.Run("panic is recovered", func(t *testing.T) {
		d := worker.New()
		var ran atomic.Bool
		d.Submit(func() { panic("bad peer") })
		d.Submit(func() { ran.Store(true) })
		assert.NotPanics(t, d.Wait)
		assert.True(t, ran.Load())
	})

	t.Run("max workers", func(t *testing.T) {
		const limit = 2
		d := worker.New(worker.WithMaxWorkers(limit))

		var running, peak atomic.Int64
		submitted := make(chan struct{})
		go func() {
			defer close(submitted)
			for i := 0; i < 10; i++ {
				d.Submit(func() {
					n := running.Add(1)
					for {
						p := peak.Load()
						if n <= p || peak.CompareAndSwap(p, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					running.Add(-1)
				})
			}
		}()
		assert.Eventually(t, func() bool { return peak.Load() == limit }, 5*time.Second, time.Millisecond)
		<-submitted
		d.Wait()
		assert.Equal(t, int64(limit), peak.Load())
	})
}
