package providers

import (
	"github.com/samber/do/v2"

	"github.com/works-s/postsmith/internal/backup"
	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/store"
)

// ProvideBackupService provides backup archive management.
func ProvideBackupService(i do.Injector) (*backup.BackupService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	records := do.MustInvoke[*store.Records](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return backup.NewBackupService(records, cfg.Data.BackupDir, log.Logger.Logger), nil
}

// ProvideRestoreService provides restore and browser import.
func ProvideRestoreService(i do.Injector) (*backup.RestoreService, error) {
	records := do.MustInvoke[*store.Records](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return backup.NewRestoreService(records, log.Logger.Logger), nil
}
