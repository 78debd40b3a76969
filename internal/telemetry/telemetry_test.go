package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledClientIsNoop(t *testing.T) {
	var nilClient *Client
	assert.False(t, nilClient.Enabled())
	nilClient.Track(EventAppStarted, nil)
	assert.NoError(t, nilClient.Close())

	c, err := New("", "", "id", false)
	require.NoError(t, err)
	assert.False(t, c.Enabled())
	c.Track(EventAppStarted, map[string]interface{}{"version": "1"})
	assert.NoError(t, c.Close())

	c, err = New("phc_key", "http://127.0.0.1:1", "id", true)
	require.NoError(t, err)
	assert.False(t, c.Enabled(), "opted-out installs never send")
}

func TestTrackSendsOnClose(t *testing.T) {
	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":1}`))
	}))
	defer srv.Close()

	c, err := New("phc_test", srv.URL, "install-123", false)
	require.NoError(t, err)
	require.True(t, c.Enabled())

	c.Track(EventFolderScanned, map[string]interface{}{"entries": 4})
	require.NoError(t, c.Close())

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.True(t, strings.HasPrefix(paths[0], "/batch"))
	if !strings.Contains(bodies[0], "\x1f\x8b") {
		assert.Contains(t, bodies[0], EventFolderScanned)
		assert.Contains(t, bodies[0], "install-123")
	}
}
