// Package receiver downloads files from serving peers.
package receiver

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// DefaultChunkSize is the size of the buffer received bytes are copied through.
const DefaultChunkSize = 32 * 1024

type options struct {
	logger      *zap.Logger
	dialTimeout time.Duration
	idleTimeout time.Duration
	chunkSize   int
	writers     []io.Writer
}

func defaultOptions() options {
	return options{
		logger:    zap.NewNop(),
		chunkSize: DefaultChunkSize,
	}
}

// Option configures a download.
type Option func(o *options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDialTimeout bounds the time spent connecting to the peer.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = d
	}
}

// WithIdleTimeout fails the download if the peer sends nothing for the
// provided duration.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
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

// WithWriters mirrors every received body byte into the provided writers,
// typically to track progress.
func WithWriters(writers ...io.Writer) Option {
	return func(o *options) {
		o.writers = append(o.writers, writers...)
	}
}
