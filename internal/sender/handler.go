package sender

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/SpatiumPortae/peershare/internal/conn"
	"github.com/SpatiumPortae/peershare/protocol/transfer"
	"go.uber.org/zap"
)

var errOutsideShare = errors.New("path resolves outside of the share directory")

// Handle serves a single file request on the provided connection and closes it.
func Handle(c net.Conn, shareDir string, opts ...Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	root, err := filepath.Abs(shareDir)
	if err != nil {
		o.logger.Error("resolving share directory", zap.String("share_dir", shareDir), zap.Error(err))
		c.Close()
		return
	}
	handle(c, root, o)
}

// handle performs the sending side of the transfer protocol. Nothing is
// returned: every failure is reported to the peer, when possible, and logged.
func handle(c net.Conn, root string, o options) {
	peer := c.RemoteAddr().String()
	logger := o.logger.With(zap.String("peer", peer))
	c = conn.WithIdleTimeout(c, o.idleTimeout)
	defer func() {
		if err := c.Close(); err != nil && !conn.IsClosed(err) {
			logger.Warn("closing connection to peer", zap.Error(err))
		}
	}()

	name, err := transfer.ReadRequest(transfer.NewReader(c))
	if err != nil {
		logger.Warn("reading file name from peer", zap.Error(err))
		return
	}
	logger = logger.With(zap.String("file", name))

	path, err := resolve(root, name)
	if err != nil {
		logger.Warn("refusing file request", zap.Error(err))
		refuse(c, fmt.Sprintf("Access to %s is not permitted.", name), logger)
		return
	}

	f, err := open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		refuse(c, fmt.Sprintf("File %s could not be found.", name), logger)
		return
	case err != nil:
		refuse(c, fmt.Sprintf("Error transferring file to peer %s %v", peer, err), logger)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warn("closing shared file", zap.Error(err))
		}
	}()

	if err := transfer.WriteOK(c); err != nil {
		logger.Error("sending header", zap.Error(err))
		return
	}
	start := time.Now()
	n, err := io.CopyBuffer(c, f, make([]byte, o.chunkSize))
	if err != nil {
		logger.Error("sending file", zap.Int64("bytes_sent", n), zap.Error(err))
		return
	}
	if err := conn.CloseWrite(c); err != nil {
		logger.Warn("closing write side of connection", zap.Error(err))
	}
	logger.Info("sent file", zap.Int64("bytes_sent", n), zap.Duration("duration", time.Since(start)))
}

// refuse answers the request with an error header.
func refuse(c net.Conn, reason string, logger *zap.Logger) {
	logger.Info("refused file request", zap.String("reason", reason))
	if err := transfer.WriteError(c, reason); err != nil {
		logger.Warn("sending error header", zap.Error(err))
		return
	}
	if err := conn.CloseWrite(c); err != nil {
		logger.Warn("closing write side of connection", zap.Error(err))
	}
}

// resolve joins the requested name onto the share directory, refusing names
// that escape it.
func resolve(root, name string) (string, error) {
	path := filepath.Join(root, name)
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideShare
	}
	return path, nil
}

// open opens a regular file for reading. Anything else is reported as not existing.
func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%s is not a regular file: %w", filepath.Base(path), fs.ErrNotExist)
	}
	return f, nil
}
