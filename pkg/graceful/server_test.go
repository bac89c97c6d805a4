package graceful

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_DrainsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusNoContent)
	})

	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), &http.Server{Handler: mux}, 2*time.Second)
	drained := make(chan struct{})
	srv.OnShutdown(func() { close(drained) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	respCh := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			respCh <- 0
			return
		}
		_ = resp.Body.Close()
		respCh <- resp.StatusCode
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-drained
	close(release)

	assert.Equal(t, http.StatusNoContent, <-respCh)
	assert.NoError(t, <-done)
}

func TestServer_NilServer(t *testing.T) {
	assert.NoError(t, NewServer(nil, nil, time.Second).ListenAndServe(context.Background()))
}
