package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/SpatiumPortae/peershare/internal/conn"
	"github.com/SpatiumPortae/peershare/internal/status"
	"github.com/SpatiumPortae/peershare/protocol/transfer"
	"go.uber.org/zap"
)

const (
	msgStarting    = "Download starting..."
	msgDownloading = "downloading..."
	msgFinished    = "Finished downloading."
	msgUnavailable = "Error. The shared file could not be transmitted. It may no longer be available from this peer."
)

var ErrInvalidName = errors.New("file name must not contain path separators or line breaks")

// StatusMessage formats a message the way it is published on a download status.
func StatusMessage(fileName, msg string) string {
	return fmt.Sprintf("Download status for %s: %s", fileName, msg)
}

// Receive downloads the file named by the status from the peer at addr into
// receiveDir. Progress and the outcome are published on the status, which is
// always terminated when Receive returns. A failed download leaves no file
// behind.
func Receive(ctx context.Context, addr, receiveDir string, st *status.Status, opts ...Option) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	name := st.FileName()
	logger := o.logger.With(zap.String("peer", addr), zap.String("file", name))

	st.SetMessage(StatusMessage(name, msgStarting))
	outcome, err := receive(ctx, addr, receiveDir, st, o, logger)
	if err != nil {
		logger.Warn("download failed", zap.Error(err))
	}
	st.Finish(StatusMessage(name, outcome), err)
}

// Go starts Receive on a new goroutine and returns the status to observe it by.
func Go(ctx context.Context, addr, receiveDir, fileName string, opts ...Option) *status.Status {
	st := status.New(fileName)
	go Receive(ctx, addr, receiveDir, st, opts...)
	return st
}

// receive returns the outcome to publish along with the error that caused a failure.
func receive(ctx context.Context, addr, dir string, st *status.Status, o options, logger *zap.Logger) (string, error) {
	name := st.FileName()
	if err := validateName(name); err != nil {
		return fmt.Sprintf("Error. Invalid file name %q", name), err
	}

	d := net.Dialer{Timeout: o.dialTimeout}
	raw, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Sprintf("Error. Could not create connection to peer at %s. Exception: %v", addr, err),
			fmt.Errorf("connecting to peer: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		raw.Close()
	})
	defer stop()
	c := conn.WithIdleTimeout(raw, o.idleTimeout)
	defer func() {
		if err := c.Close(); err != nil && !conn.IsClosed(err) {
			logger.Warn("closing connection to peer", zap.Error(err))
		}
	}()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Sprintf("Error. Could not create the new file %s", name),
			fmt.Errorf("creating destination file: %w", err)
	}

	n, outcome, err := download(c, f, st, o, logger)
	if cerr := f.Close(); cerr != nil {
		logger.Warn("closing destination file", zap.Error(cerr))
	}
	if err != nil {
		if ctx.Err() != nil {
			outcome = "Error. The download was cancelled."
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
			logger.Warn("removing partial file", zap.String("path", path), zap.Error(rerr))
		}
		return outcome, err
	}
	logger.Info("received file", zap.String("path", path), zap.Int64("bytes_received", n))
	return msgFinished, nil
}

// download requests the file on c and streams the body into f.
func download(c net.Conn, f io.Writer, st *status.Status, o options, logger *zap.Logger) (int64, string, error) {
	name := st.FileName()
	peer := c.RemoteAddr().String()
	if err := transfer.WriteRequest(c, name); err != nil {
		return 0, fmt.Sprintf("Error. Could not send the file request to peer at %s", peer), err
	}

	r := transfer.NewReader(c)
	h, err := transfer.ReadHeader(r)
	if err != nil {
		return 0, msgUnavailable, fmt.Errorf("reading response header: %w", err)
	}
	if err := h.Err(); err != nil {
		if h.Reason == "" {
			return 0, msgUnavailable, err
		}
		return 0, h.Reason, err
	}
	if h.Type == transfer.Unknown {
		logger.Debug("unrecognized response header, reading body", zap.String("header", h.Reason))
	}
	st.SetMessage(StatusMessage(name, msgDownloading))

	dst := f
	if len(o.writers) > 0 {
		dst = io.MultiWriter(append([]io.Writer{f}, o.writers...)...)
	}
	buf := make([]byte, o.chunkSize)
	var written int64
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, fmt.Sprintf("Error. Could not write to the file %s", name),
					fmt.Errorf("writing to destination file: %w", werr)
			}
			written += int64(n)
		}
		if errors.Is(rerr, io.EOF) {
			return written, msgFinished, nil
		}
		if rerr != nil {
			return written, fmt.Sprintf("Error. Lost connection to peer at %s while downloading", peer),
				fmt.Errorf("reading file data: %w", rerr)
		}
	}
}

func validateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return transfer.ErrEmptyName
	case name == "." || name == "..":
		return ErrInvalidName
	case strings.ContainsAny(name, "/\\\r\n"):
		return ErrInvalidName
	}
	return nil
}
