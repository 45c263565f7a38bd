package metric

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_ServesMetricsAndHandlers(t *testing.T) {
	registry := NewMetricsRegistry()
	registry.CoreMetrics().RecordSamples("demodulator", 7)

	port := freePort(t)
	server := NewServer(port, "", registry)
	server.Handle("/ports", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ports"))
	}))

	errCh, err := server.Start()
	require.NoError(t, err)
	defer server.Stop(context.Background())

	require.NotNil(t, server.Addr())
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/metrics", port), server.Address())

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	status, body := get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `sigport_stage_samples_total{stage="demodulator"} 7`)

	status, body = get(t, base+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, body = get(t, base+"/ports")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ports", body)

	_, err = server.Start()
	assert.Error(t, err, "second Start should fail while running")

	require.NoError(t, server.Stop(context.Background()))
	assert.Nil(t, server.Addr())

	select {
	case err, ok := <-errCh:
		assert.False(t, ok && err != nil, "serve should end cleanly, got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve goroutine did not exit")
	}
}

func TestServer_NilRegistry(t *testing.T) {
	server := NewServer(freePort(t), "/metrics", nil)
	_, err := server.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics registry not provided")
	assert.NoError(t, server.Stop(context.Background()))
}
