// Package di provides dependency injection configuration for the postsmith server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/di/providers"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/store"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideMetrics)

	// Storage layer
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideRecords)
	do.Provide(injector, providers.ProvideVault)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Generation inputs
	do.Provide(injector, providers.ProvideBrand)
	do.Provide(injector, providers.ProvideCapability)
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideWorkspace)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Business services
	do.Provide(injector, providers.ProvideGenerationService)
	do.Provide(injector, providers.ProvideWorkspaceService)
	do.Provide(injector, providers.ProvideScheduleService)
	do.Provide(injector, providers.ProvideHistoryService)
	do.Provide(injector, providers.ProvideBackupService)
	do.Provide(injector, providers.ProvideRestoreService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.LoggerHandle](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*store.Records](injector)
	if _, err := do.Invoke[*credential.Vault](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if err := providers.RebuildSearchIndex(injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.BrandHandle](injector); err != nil {
		return err
	}

	// Business services
	_ = do.MustInvoke[*service.GenerationService](injector)
	_ = do.MustInvoke[*service.WorkspaceService](injector)
	_ = do.MustInvoke[*service.ScheduleService](injector)
	_ = do.MustInvoke[*service.HistoryService](injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
