package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/brand"
	"github.com/works-s/postsmith/internal/config"
)

// BrandHandle supplies the brand profile, following the profile file when one is configured.
type BrandHandle struct {
	brand.Source
	watcher *brand.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *BrandHandle) Shutdown() error {
	if h.watcher == nil {
		return nil
	}
	h.cancel()
	return h.watcher.Close()
}

// ProvideBrand provides the brand profile source.
func ProvideBrand(i do.Injector) (*BrandHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if cfg.Brand.ProfilePath == "" {
		log.Info("Using built-in brand profile")
		return &BrandHandle{Source: brand.Static(brand.Default())}, nil
	}

	w, err := brand.NewWatcher(cfg.Brand.ProfilePath, log.Logger.Logger,
		brand.WithReloadHook(func(p brand.Profile) {
			log.Info("Brand profile reloaded", "business", p.BusinessName)
		}),
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	log.Info("Watching brand profile", "path", cfg.Brand.ProfilePath)
	return &BrandHandle{Source: w, watcher: w, cancel: cancel}, nil
}
