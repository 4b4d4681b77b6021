package sender_test

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SpatiumPortae/peershare/internal/sender"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startListener serves the directory on a free loopback port until the test ends.
func startListener(t *testing.T, dir string, opts ...sender.Option) *sender.Listener {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	l, err := sender.Listen(ctx, 0, dir, opts...)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("listener did not shut down")
		}
	})
	return l
}

func dialAddr(l *sender.Listener) string {
	return fmt.Sprintf("127.0.0.1:%d", l.Addr().(*net.TCPAddr).Port)
}

// request performs a raw request and returns everything the server sent.
func request(t *testing.T, addr, line string) string {
	t.Helper()
	resp, err := exchange(addr, line)
	require.NoError(t, err)
	return resp
}

func exchange(addr, line string) (string, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return "", err
	}
	defer c.Close()
	if err := c.SetDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return "", err
	}
	if _, err := io.WriteString(c, line); err != nil {
		return "", err
	}
	b, err := io.ReadAll(c)
	return string(b), err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestListener(t *testing.T) {
	share := t.TempDir()
	writeFile(t, share, "report.txt", "Hello,World!")
	require.NoError(t, os.Mkdir(filepath.Join(share, "nested"), 0o755))
	writeFile(t, share, filepath.Join("nested", "notes.txt"), "nested notes")
	writeFile(t, filepath.Dir(share), "outside.txt", "secret")

	l := startListener(t, share, sender.WithChunkSize(4))
	addr := dialAddr(l)

	t.Run("serves file", func(t *testing.T) {
		assert.Equal(t, "OK \nHello,World!", request(t, addr, "report.txt\n"))
	})
	t.Run("serves nested file", func(t *testing.T) {
		assert.Equal(t, "OK \nnested notes", request(t, addr, "nested/notes.txt\n"))
	})
	t.Run("trims request", func(t *testing.T) {
		assert.Equal(t, "OK \nHello,World!", request(t, addr, "  report.txt \r\n"))
	})
	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, "ERR File missing.txt could not be found.\n", request(t, addr, "missing.txt\n"))
	})
	t.Run("directory", func(t *testing.T) {
		assert.Equal(t, "ERR File nested could not be found.\n", request(t, addr, "nested\n"))
	})
	t.Run("traversal", func(t *testing.T) {
		resp := request(t, addr, "../outside.txt\n")
		assert.Equal(t, "ERR Access to ../outside.txt is not permitted.\n", resp)
		assert.NotContains(t, resp, "secret")
	})
	t.Run("absolute path stays in share", func(t *testing.T) {
		assert.Equal(t, "OK \nHello,World!", request(t, addr, "/report.txt\n"))
	})
	t.Run("disconnect before name", func(t *testing.T) {
		c, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		require.NoError(t, c.Close())

		// The listener keeps serving other peers.
		assert.Equal(t, "OK \nHello,World!", request(t, addr, "report.txt\n"))
	})
	t.Run("over long request is abandoned", func(t *testing.T) {
		// The server may reset the connection, only the absence of a header matters.
		resp, _ := exchange(addr, strings.Repeat("a", 8192)+"\n")
		assert.Equal(t, "", resp)
	})
}

func TestListenerLifecycle(t *testing.T) {
	share := t.TempDir()
	writeFile(t, share, "report.txt", "Hello,World!")

	t.Run("bind failure", func(t *testing.T) {
		occupied, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		defer occupied.Close()
		port := occupied.Addr().(*net.TCPAddr).Port

		_, err = sender.Listen(context.Background(), port, share)
		assert.Error(t, err)
	})

	t.Run("cancel releases port", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		l, err := sender.Listen(ctx, 0, share)
		require.NoError(t, err)
		port := l.Addr().(*net.TCPAddr).Port

		done := make(chan error, 1)
		go func() { done <- l.Serve(ctx) }()
		assert.Equal(t, "OK \nHello,World!", request(t, dialAddr(l), "report.txt\n"))

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("listener did not stop")
		}

		again, err := sender.Listen(context.Background(), port, share)
		require.NoError(t, err)
		assert.NoError(t, again.Close())
	})

	t.Run("close aborts stalled peers", func(t *testing.T) {
		l, err := sender.Listen(context.Background(), 0, share)
		require.NoError(t, err)
		done := make(chan error, 1)
		go func() { done <- l.Serve(context.Background()) }()

		// A peer that connects but never sends a file name.
		c, err := net.Dial("tcp", dialAddr(l))
		require.NoError(t, err)
		defer c.Close()
		time.Sleep(20 * time.Millisecond)

		assert.NoError(t, l.Close())
		assert.NoError(t, l.Close())
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("listener did not stop")
		}
	})
}

func TestHandle(t *testing.T) {
	share := t.TempDir()
	writeFile(t, share, "report.txt", "Hello,World!")

	client, server := net.Pipe()
	defer client.Close()
	go sender.Handle(server, share)

	_, err := io.WriteString(client, "report.txt\n")
	require.NoError(t, err)
	b, err := io.ReadAll(client)
	assert.NoError(t, err)
	assert.Equal(t, "OK \nHello,World!", string(b))
}
