// server.go defines the listener that accepts file requests from peers.
package sender

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/SpatiumPortae/peershare/internal/worker"
	"go.uber.org/zap"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Listener accepts connections on a bound port and serves each of them on a
// separate worker.
type Listener struct {
	ln      net.Listener
	root    string
	opts    options
	logger  *zap.Logger
	workers *worker.Dispatcher

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed chan struct{}
	once   sync.Once
}

// Listen binds the provided port. Binding errors are returned as is, they are
// not retried.
func Listen(ctx context.Context, port int, shareDir string, opts ...Option) (*Listener, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	root, err := filepath.Abs(shareDir)
	if err != nil {
		return nil, fmt.Errorf("resolving share directory: %w", err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding port %d: %w", port, err)
	}
	return &Listener{
		ln:      ln,
		root:    root,
		opts:    o,
		logger:  o.logger,
		workers: worker.New(worker.WithMaxWorkers(o.maxWorkers), worker.WithLogger(o.logger)),
		conns:   make(map[net.Conn]struct{}),
		closed:  make(chan struct{}),
	}, nil
}

// Serve binds the port and serves the share directory until the context is done.
func Serve(ctx context.Context, port int, shareDir string, opts ...Option) error {
	l, err := Listen(ctx, port, shareDir, opts...)
	if err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Addr returns the address the listener is bound to.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop. Accept errors are logged and the loop carries on.
// Returns once the context is done or the listener is closed and every
// in-flight connection has been released.
func (l *Listener) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.Close()
	})
	defer stop()
	defer l.workers.Wait()

	l.logger.Info("serving share directory",
		zap.String("address", l.ln.Addr().String()),
		zap.String("share_dir", l.root),
	)
	var delay time.Duration
	for {
		c, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.closed:
				l.logger.Info("listener closed")
				return nil
			default:
			}
			delay = backoff(delay)
			l.logger.Warn("accepting connection", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-l.closed:
				return nil
			}
			continue
		}
		delay = 0
		if !l.track(c) {
			c.Close()
			continue
		}
		l.workers.Submit(func() {
			defer l.untrack(c)
			handle(c, l.root, l.opts)
		})
	}
}

// Close stops accepting connections, releases the port and aborts in-flight
// transfers. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		close(l.closed)
		err = l.ln.Close()

		l.mu.Lock()
		defer l.mu.Unlock()
		for c := range l.conns {
			c.Close()
		}
	})
	return err
}

// track registers an accepted connection, false if the listener is closed.
func (l *Listener) track(c net.Conn) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.closed:
		return false
	default:
	}
	l.conns[c] = struct{}{}
	return true
}

func (l *Listener) untrack(c net.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns, c)
}

func backoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptDelay
	}
	if delay *= 2; delay > maxAcceptDelay {
		return maxAcceptDelay
	}
	return delay
}
