package index_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/SpatiumPortae/peershare/internal/index"
	"github.com/SpatiumPortae/peershare/internal/semver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	s := index.NewServer(0, index.NewMemory(), semver.Version{Major: 1, Minor: 2, Patch: 3})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestClient(t *testing.T) {
	ts := newTestServer(t)
	c := index.NewClient(ts.URL)
	testStore(t, c)

	t.Run("files", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Register(ctx, "b.txt", "10.0.0.1:3333"))
		require.NoError(t, c.Register(ctx, "a.txt", "10.0.0.1:3333"))
		files, err := c.Files(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt"}, files)
	})
	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, c.Ping(context.Background()))
	})
	t.Run("host and port address", func(t *testing.T) {
		hc := index.NewClient(strings.TrimPrefix(ts.URL, "http://"))
		assert.NoError(t, hc.Ping(context.Background()))
	})
}

func TestServer(t *testing.T) {
	ts := newTestServer(t)

	t.Run("lookup unknown file", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/sharedfiles/missing.txt")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)

		var msg index.ErrorMessage
		require.NoError(t, json.NewDecoder(res.Body).Decode(&msg))
		assert.Equal(t, http.StatusNotFound, msg.StatusCode)
		assert.Equal(t, "The file missing.txt is not currently being shared by any peer.", msg.Message)
	})

	t.Run("register sets location", func(t *testing.T) {
		body := `{"fileName":"report.txt","hostAddress":"10.0.0.1:3333"}`
		res, err := http.Post(ts.URL+"/sharedfiles", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.Equal(t, "/sharedfiles/report.txt/peers/10.0.0.1:3333", res.Header.Get("Location"))

		res, err = http.Get(ts.URL + res.Header.Get("Location"))
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		var msg index.FileMessage
		require.NoError(t, json.NewDecoder(res.Body).Decode(&msg))
		assert.Equal(t, index.FileMessage{FileName: "report.txt", HostAddress: "10.0.0.1:3333"}, msg)
	})

	t.Run("register conflict", func(t *testing.T) {
		body := `{"fileName":"report.txt","hostAddress":"10.0.0.1:3333"}`
		res, err := http.Post(ts.URL+"/sharedfiles", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusConflict, res.StatusCode)
	})

	t.Run("register bad body", func(t *testing.T) {
		for _, body := range []string{`not json`, `{"fileName":"report.txt"}`, `{"fileName":" ","hostAddress":"10.0.0.1:3333"}`} {
			res, err := http.Post(ts.URL+"/sharedfiles", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			res.Body.Close()
			assert.Equal(t, http.StatusBadRequest, res.StatusCode, body)
		}
	})

	t.Run("deregister unknown", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sharedfiles/report.txt/peers/10.0.0.9:3333", nil)
		require.NoError(t, err)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("ping", func(t *testing.T) {
		res, err := http.Get(ts.URL + "/ping")
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
	})

	t.Run("version", func(t *testing.T) {
		addr := strings.TrimPrefix(ts.URL, "http://")
		v, err := semver.GetIndexVersion(context.Background(), addr)
		require.NoError(t, err)
		assert.Equal(t, "v1.2.3", v.String())
	})
}

func TestServerStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := index.NewServer(0, index.NewMemory(), semver.Version{})
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("index server did not shut down")
	}
}
