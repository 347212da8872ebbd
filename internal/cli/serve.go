package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/venueflow/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP API on addr until ctx is done, then shuts it down
// gracefully.
func Serve(ctx context.Context, rt *Runtime, addr string) error {
	opts := []httpAdapter.Option{httpAdapter.WithLogger(rt.Logger)}
	if rt.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetrics(rt.Metrics.Handler()))
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpAdapter.NewHandler(rt.Engine, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		rt.Logger.Info("venueflow server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		rt.Logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
		}
		return nil
	}
}
