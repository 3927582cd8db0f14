package providers

import (
	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/store"
)

// ProvideMetrics provides the Prometheus collectors.
func ProvideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(), nil
}

// ProvideRecords provides history and schedule persistence. The search
// indexer is attached later by ProvideSearchIndex.
func ProvideRecords(i do.Injector) (*store.Records, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	m := do.MustInvoke[*metrics.Metrics](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return store.NewRecords(storeHandle, log.Logger.Logger,
		store.WithEmitter(sseHandle.Manager),
		store.WithCountObserver(m.SetRecordCount),
	), nil
}

// ProvideVault provides the encrypted API key store.
func ProvideVault(i do.Injector) (*credential.Vault, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	key, err := credential.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	vault := credential.NewVault(storeHandle, key, cfg.Anthropic.APIKey, log.Logger.Logger)
	if cfg.Anthropic.APIKey != "" {
		log.Info("Environment API key available", "fingerprint", credential.Fingerprint(cfg.Anthropic.APIKey))
	}
	return vault, nil
}
