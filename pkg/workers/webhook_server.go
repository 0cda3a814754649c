package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const shutdownTimeout = 10 * time.Second

type webhookServer struct {
	srv    *http.Server
	onStop func()
}

// NewWebhookServer serves handler on addr. onStop, when set, runs once the server
// has stopped and no request handler is running any more.
func NewWebhookServer(addr string, handler http.Handler, onStop func()) (*webhookServer, error) {
	if addr == "" {
		return nil, errors.New("listen address is empty")
	}
	return &webhookServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		onStop: onStop,
	}, nil
}

func (w *webhookServer) Name() string { return "webhook_server" }

func (w *webhookServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", w.srv.Addr)
	if err != nil {
		w.stopped()
		return fmt.Errorf("listening on %s: %w", w.srv.Addr, err)
	}
	return w.serve(ctx, ln)
}

func (w *webhookServer) serve(ctx context.Context, ln net.Listener) error {
	slog.Info("Starting worker", "name", w.Name(), "addr", ln.Addr().String())
	defer slog.Info("Worker stopped", "name", w.Name())
	defer w.stopped()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
	}

	// Shutdown also waits for handlers still running after Serve failed.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.srv.Shutdown(shutdownCtx); err != nil {
		// Closing the connections fails the requests still reading their bodies.
		w.srv.Close()
		return errors.Join(serveErr, fmt.Errorf("shutting down http server: %w", err))
	}
	return serveErr
}

func (w *webhookServer) stopped() {
	if w.onStop != nil {
		w.onStop()
	}
}
