package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/sse"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/store/rediskv"
	"github.com/works-s/postsmith/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*LoggerHandle](i)

	manager := sse.NewManager(log.Logger.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// BlobStore is a blob store that can also report its health.
type BlobStore interface {
	store.BlobStore
	store.Pinger
}

// StoreHandle wraps the configured blob store with shutdown capability.
type StoreHandle struct {
	BlobStore
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the blob store selected by STORE_BACKEND.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	blobs, err := OpenBlobStore(cfg, log.Logger.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Record store initialized", "backend", cfg.Store.Backend, "data_path", cfg.Data.BasePath)
	return &StoreHandle{BlobStore: blobs}, nil
}

// OpenBlobStore opens the backend named in cfg. Shared with the CLI.
func OpenBlobStore(cfg *config.Config, logger *slog.Logger) (BlobStore, error) {
	if err := os.MkdirAll(cfg.Data.BasePath, 0o750); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	switch cfg.Store.Backend {
	case config.BackendBadger:
		return store.OpenBadger(filepath.Join(cfg.Data.BasePath, "db"), logger)
	case config.BackendSQLite:
		return sqlite.Open(filepath.Join(cfg.Data.BasePath, "postsmith.db"), logger)
	case config.BackendRedis:
		return rediskv.Open(context.Background(), cfg.Store.RedisURL, logger)
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
