// Package status provides the completion handle shared between a download and
// anything waiting on it.
package status

import (
	"context"
	"sync"
)

// Status represents the lifecycle of a single download. The message and the
// termination flag share one lock, so a waiter that observes termination also
// observes the final message.
type Status struct {
	fileName string

	mu         sync.Mutex
	message    string
	err        error
	terminated bool
	done       chan struct{}
}

// New creates a status for the download of the provided file.
func New(fileName string) *Status {
	return &Status{
		fileName: fileName,
		done:     make(chan struct{}),
	}
}

// FileName returns the name of the file being downloaded.
func (s *Status) FileName() string {
	return s.fileName
}

// Message returns the latest progress or outcome message.
func (s *Status) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// SetMessage replaces the progress message. Once terminated the final message
// is kept.
func (s *Status) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.message = message
}

// SetTerminated marks the download as terminated and wakes all waiters.
// Calling it more than once has no effect.
func (s *Status) SetTerminated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminate()
}

// Finish publishes the final message and outcome and terminates the status
// in a single step. Has no effect on an already terminated status.
func (s *Status) Finish(message string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return
	}
	s.message = message
	s.err = err
	s.terminate()
}

// terminate must be called with the lock held.
func (s *Status) terminate() {
	if s.terminated {
		return
	}
	s.terminated = true
	close(s.done)
}

// Terminated reports whether the download has terminated.
func (s *Status) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Err returns the error the download terminated with, nil while running or on success.
func (s *Status) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done returns a channel that is closed once the download has terminated.
func (s *Status) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the download has terminated and returns true.
func (s *Status) Wait() bool {
	<-s.done
	return true
}

// WaitContext blocks until the download has terminated or the context is done.
func (s *Status) WaitContext(ctx context.Context) (bool, error) {
	select {
	case <-s.done:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
