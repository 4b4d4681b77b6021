// Package peer ties the transfer core to an index: it serves the share
// directory, registers shared files and downloads files other peers share.
package peer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/receiver"
	"github.com/SpatiumPortae/peershare/internal/sender"
	"github.com/SpatiumPortae/peershare/internal/status"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

var (
	ErrInvalidName = errors.New("please enter a valid file name")
	ErrNotInShare  = errors.New("the specified file does not exist in the sharing directory")
)

// Config holds the settings of a peer.
type Config struct {
	ShareDir    string
	ReceiveDir  string
	ListenPort  int
	Advertise   string // address other peers reach this one on, derived when empty
	ChunkSize   int
	MaxWorkers  int
	DialTimeout time.Duration
	IdleTimeout time.Duration
}

// Peer shares files from its share directory and downloads into its receive
// directory.
type Peer struct {
	cfg    Config
	index  index.Index
	logger *zap.Logger
	addr   string

	mu     sync.Mutex
	shared []string
}

// Option configures a Peer.
type Option func(p *Peer)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Peer) {
		p.logger = logger
	}
}

func New(cfg Config, idx index.Index, opts ...Option) *Peer {
	p := &Peer{
		cfg:    cfg,
		index:  idx,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.addr = advertiseAddr(cfg.Advertise, cfg.ListenPort)
	return p
}

// Addr returns the address registered with the index for shared files.
func (p *Peer) Addr() string {
	return p.addr
}

// Listen binds the listen port for serving the share directory.
func (p *Peer) Listen(ctx context.Context) (*sender.Listener, error) {
	return sender.Listen(ctx, p.cfg.ListenPort, p.cfg.ShareDir,
		sender.WithLogger(p.logger.Named("sender")),
		sender.WithChunkSize(p.cfg.ChunkSize),
		sender.WithMaxWorkers(p.cfg.MaxWorkers),
		sender.WithIdleTimeout(p.cfg.IdleTimeout),
	)
}

// Serve serves the share directory until the context is done.
func (p *Peer) Serve(ctx context.Context) error {
	l, err := p.Listen(ctx)
	if err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Share registers a file of the share directory with the index.
func (p *Peer) Share(ctx context.Context, fileName string) error {
	fileName = strings.TrimSpace(fileName)
	if err := validateName(fileName); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Join(p.cfg.ShareDir, fileName))
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotInShare, fileName)
	}
	if err := p.index.Register(ctx, fileName, p.addr); err != nil {
		return fmt.Errorf("sharing %s: %w", fileName, err)
	}
	p.mu.Lock()
	p.shared = append(p.shared, fileName)
	p.mu.Unlock()
	p.logger.Info("shared file", zap.String("file", fileName), zap.String("address", p.addr))
	return nil
}

// Unshare removes the record of this peer sharing the file.
func (p *Peer) Unshare(ctx context.Context, fileName string) error {
	fileName = strings.TrimSpace(fileName)
	if err := validateName(fileName); err != nil {
		return err
	}
	if err := p.index.Deregister(ctx, fileName, p.addr); err != nil {
		return fmt.Errorf("unsharing %s: %w", fileName, err)
	}
	p.mu.Lock()
	if i := slices.Index(p.shared, fileName); i >= 0 {
		p.shared = slices.Delete(p.shared, i, i+1)
	}
	p.mu.Unlock()
	p.logger.Info("unshared file", zap.String("file", fileName))
	return nil
}

// UnshareAll unshares every file shared through this peer. Every file is
// attempted, the errors are joined.
func (p *Peer) UnshareAll(ctx context.Context) error {
	p.mu.Lock()
	files := slices.Clone(p.shared)
	p.mu.Unlock()

	var errs []error
	for _, f := range files {
		if err := p.Unshare(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shared returns the files shared through this peer.
func (p *Peer) Shared() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.shared)
}

// Search returns the address of a peer sharing the file.
func (p *Peer) Search(ctx context.Context, fileName string) (string, error) {
	fileName = strings.TrimSpace(fileName)
	if err := validateName(fileName); err != nil {
		return "", err
	}
	return p.index.Lookup(ctx, fileName)
}

// Download looks up a peer sharing the file and downloads it from that peer.
// The returned status is terminated once the download is over, whatever the
// outcome. Options are applied on top of the peer configuration.
func (p *Peer) Download(ctx context.Context, fileName string, opts ...receiver.Option) *status.Status {
	fileName = strings.TrimSpace(fileName)
	st := status.New(fileName)
	go func() {
		addr, err := p.Search(ctx, fileName)
		switch {
		case errors.Is(err, index.ErrNotFound):
			st.Finish(receiver.StatusMessage(fileName,
				fmt.Sprintf("The file %s is not currently being shared by any peer.", fileName)), err)
			return
		case err != nil:
			st.Finish(receiver.StatusMessage(fileName,
				fmt.Sprintf("Error. An error occurred while searching for the file: %v", err)), err)
			return
		}
		receiver.Receive(ctx, addr, p.cfg.ReceiveDir, st, p.receiveOptions(opts)...)
	}()
	return st
}

// DownloadFrom downloads the file from the peer at addr, without consulting the index.
func (p *Peer) DownloadFrom(ctx context.Context, addr, fileName string, opts ...receiver.Option) *status.Status {
	return receiver.Go(ctx, addr, p.cfg.ReceiveDir, strings.TrimSpace(fileName), p.receiveOptions(opts)...)
}

// ReceiveDir returns the directory downloads are written to.
func (p *Peer) ReceiveDir() string {
	return p.cfg.ReceiveDir
}

func (p *Peer) receiveOptions(extra []receiver.Option) []receiver.Option {
	return append([]receiver.Option{
		receiver.WithLogger(p.logger.Named("receiver")),
		receiver.WithChunkSize(p.cfg.ChunkSize),
		receiver.WithDialTimeout(p.cfg.DialTimeout),
		receiver.WithIdleTimeout(p.cfg.IdleTimeout),
	}, extra...)
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\r\n") {
		return ErrInvalidName
	}
	return nil
}

// advertiseAddr completes the configured address with the listen port, or
// derives one from the outbound interface when nothing is configured.
func advertiseAddr(advertise string, port int) string {
	p := strconv.Itoa(port)
	if advertise == "" {
		return net.JoinHostPort(outboundIP().String(), p)
	}
	if _, _, err := net.SplitHostPort(advertise); err == nil {
		return advertise
	}
	return net.JoinHostPort(strings.Trim(advertise, "[]"), p)
}

// outboundIP returns the local address used for outgoing traffic, loopback if
// there is no route. No packet is sent.
func outboundIP() net.IP {
	c, err := net.Dial("udp", "192.0.2.1:9")
	if err != nil {
		return net.IPv4(127, 0, 0, 1)
	}
	defer c.Close()
	return c.LocalAddr().(*net.UDPAddr).IP
}
