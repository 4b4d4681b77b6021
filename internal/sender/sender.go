// Package sender serves files from a share directory to requesting peers.
package sender

import (
	"time"

	"go.uber.org/zap"
)

// DefaultChunkSize is the size of the buffer file bytes are copied through.
const DefaultChunkSize = 32 * 1024

type options struct {
	logger      *zap.Logger
	chunkSize   int
	maxWorkers  int
	idleTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		chunkSize: DefaultChunkSize,
	}
}

// Option configures the serving side.
type Option func(o *options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithChunkSize sets the copy buffer size. Non positive sizes are ignored.
func WithChunkSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.chunkSize = size
		}
	}
}

// WithMaxWorkers caps the number of connections served at once. By default
// there is no cap.
func WithMaxWorkers(n int) Option {
	return func(o *options) {
		o.maxWorkers = n
	}
}

// WithIdleTimeout aborts a connection whose peer makes no progress for the
// provided duration. Disabled by default.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}
