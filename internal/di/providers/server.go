package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/api"
	"github.com/works-s/postsmith/internal/backup"
	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/service"
)

// shutdownTimeout bounds how long each handle may take to stop.
const shutdownTimeout = 30 * time.Second

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	errs chan error
}

// Err reports a serve failure after startup. It never fires after Shutdown.
func (h *HTTPServerHandle) Err() <-chan error {
	return h.errs
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*LoggerHandle](i)

	services := &api.Services{
		Generation: do.MustInvoke[*service.GenerationService](i),
		Workspace:  do.MustInvoke[*service.WorkspaceService](i),
		Schedule:   do.MustInvoke[*service.ScheduleService](i),
		History:    do.MustInvoke[*service.HistoryService](i),
		Credential: do.MustInvoke[*credential.Vault](i),
		Backups:    do.MustInvoke[*backup.BackupService](i),
		Restores:   do.MustInvoke[*backup.RestoreService](i),
	}

	handler := api.NewServer(services, api.Deps{
		Store:       storeHandle,
		Index:       indexHandle,
		SSEManager:  sseHandle.Manager,
		Metrics:     m,
		Limiter:     limiter.KeyedRateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      log.Logger.Logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Bind here so a taken port fails bootstrap instead of a background goroutine.
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}

	h := &HTTPServerHandle{Server: srv, errs: make(chan error, 1)}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.errs <- err
		}
	}()

	log.Info("HTTP server listening", "addr", ln.Addr().String())
	return h, nil
}
