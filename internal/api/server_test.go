package api

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/logger"
)

func TestServer_ServeAndShutdown(t *testing.T) {
	cfg := &config.Config{Port: "0", Env: "development"}
	srv := NewWithTimeouts(cfg, logger.Nop(), NewRouter(Handlers{}, logger.Nop(), false), Timeouts{
		Read:  time.Second,
		Write: time.Second,
		Idle:  time.Second,
	})
	assert.Equal(t, ":0", srv.Addr())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-errCh:
		assert.NoError(t, err, "Serve returns nil after Shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
}

func TestDefaultTimeouts(t *testing.T) {
	d := DefaultTimeouts()
	assert.Equal(t, 5*time.Minute, d.Write)
	assert.Less(t, d.Read, d.Write)
}
