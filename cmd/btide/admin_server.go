package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kk-code-lab/btide/internal/admin"
	"github.com/kk-code-lab/btide/internal/clock"
	"github.com/kk-code-lab/btide/internal/registry"
)

// startAdminServer serves the admin API on addr until ctx is cancelled.
func startAdminServer(ctx context.Context, addr, dir string, store *registry.Store, log *logrus.Logger) (*http.Server, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	server := &http.Server{
		Handler: admin.NewHandler(admin.Handler{
			Registry: store,
			Clock:    clock.RealClock{},
			Log:      log.WithField("component", "admin"),
			Dir:      dir,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("admin server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server, nil
}
