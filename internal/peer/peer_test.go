package peer_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/peer"
	"github.com/SpatiumPortae/peershare/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wait(t *testing.T, st *status.Status) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := st.WaitContext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

// servingPeer starts a peer serving dir on a free port and returns it.
func servingPeer(t *testing.T, idx index.Index, dir string) *peer.Peer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	probe := peer.New(peer.Config{ShareDir: dir, Advertise: "127.0.0.1"}, idx)
	l, err := probe.Listen(ctx)
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	p := peer.New(peer.Config{ShareDir: dir, ListenPort: port, Advertise: "127.0.0.1"}, idx)
	l, err = p.Listen(ctx)
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("peer did not stop serving")
		}
	})
	return p
}

func TestPeer(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemory()
	share := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(share, "report.txt"), []byte("Hello,World!"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(share, "nested"), 0o755))

	sharing := servingPeer(t, idx, share)
	downloading := peer.New(peer.Config{ReceiveDir: t.TempDir(), Advertise: "127.0.0.1:4000"}, idx)

	t.Run("share unknown file", func(t *testing.T) {
		assert.ErrorIs(t, sharing.Share(ctx, "missing.txt"), peer.ErrNotInShare)
		assert.ErrorIs(t, sharing.Share(ctx, "nested"), peer.ErrNotInShare)
		assert.ErrorIs(t, sharing.Share(ctx, "../report.txt"), peer.ErrInvalidName)
		assert.ErrorIs(t, sharing.Share(ctx, " "), peer.ErrInvalidName)
	})

	t.Run("download unshared file", func(t *testing.T) {
		st := downloading.Download(ctx, "report.txt")
		wait(t, st)
		assert.ErrorIs(t, st.Err(), index.ErrNotFound)
		assert.Equal(t, "Download status for report.txt: The file report.txt is not currently being shared by any peer.", st.Message())
	})

	t.Run("share and download", func(t *testing.T) {
		require.NoError(t, sharing.Share(ctx, "report.txt"))
		assert.ErrorIs(t, sharing.Share(ctx, "report.txt"), index.ErrAlreadyShared)
		assert.Equal(t, []string{"report.txt"}, sharing.Shared())

		addr, err := downloading.Search(ctx, "report.txt")
		require.NoError(t, err)
		assert.Equal(t, sharing.Addr(), addr)

		st := downloading.Download(ctx, "report.txt")
		wait(t, st)
		require.NoError(t, st.Err())
		assert.Equal(t, "Download status for report.txt: Finished downloading.", st.Message())
	})

	t.Run("download from address", func(t *testing.T) {
		dst := t.TempDir()
		p := peer.New(peer.Config{ReceiveDir: dst, Advertise: "127.0.0.1:4001"}, idx)
		st := p.DownloadFrom(ctx, sharing.Addr(), "report.txt")
		wait(t, st)
		require.NoError(t, st.Err())
		b, err := os.ReadFile(filepath.Join(dst, "report.txt"))
		require.NoError(t, err)
		assert.Equal(t, "Hello,World!", string(b))
	})

	t.Run("unshare", func(t *testing.T) {
		require.NoError(t, sharing.Unshare(ctx, "report.txt"))
		assert.ErrorIs(t, sharing.Unshare(ctx, "report.txt"), index.ErrNotShared)
		assert.Empty(t, sharing.Shared())
		_, err := downloading.Search(ctx, "report.txt")
		assert.ErrorIs(t, err, index.ErrNotFound)
	})

	t.Run("unshare all", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(share, "other.txt"), []byte("other"), 0o644))
		require.NoError(t, sharing.Share(ctx, "report.txt"))
		require.NoError(t, sharing.Share(ctx, "other.txt"))
		require.NoError(t, sharing.UnshareAll(ctx))
		assert.Empty(t, sharing.Shared())
		_, err := idx.Lookup(ctx, "other.txt")
		assert.ErrorIs(t, err, index.ErrNotFound)
	})
}

func TestAddr(t *testing.T) {
	tests := []struct {
		advertise string
		port      int
		want      string
	}{
		{"10.0.0.1:5555", 3333, "10.0.0.1:5555"},
		{"10.0.0.1", 3333, "10.0.0.1:3333"},
		{"::1", 3333, "[::1]:3333"},
		{"[::1]", 3333, "[::1]:3333"},
		{"peer.example.com", 3333, "peer.example.com:3333"},
	}
	for _, tc := range tests {
		t.Run(tc.advertise, func(t *testing.T) {
			p := peer.New(peer.Config{Advertise: tc.advertise, ListenPort: tc.port}, index.NewMemory())
			assert.Equal(t, tc.want, p.Addr())
		})
	}

	t.Run("derived", func(t *testing.T) {
		p := peer.New(peer.Config{ListenPort: 3333}, index.NewMemory())
		host, port, err := net.SplitHostPort(p.Addr())
		require.NoError(t, err)
		assert.Equal(t, "3333", port)
		assert.NotNil(t, net.ParseIP(host), fmt.Sprintf("host %q", host))
	})
}
