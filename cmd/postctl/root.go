package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/works-s/postsmith/internal/backup"
	"github.com/works-s/postsmith/internal/brand"
	"github.com/works-s/postsmith/internal/config"
	"github.com/works-s/postsmith/internal/credential"
	"github.com/works-s/postsmith/internal/di/providers"
	"github.com/works-s/postsmith/internal/llm"
	"github.com/works-s/postsmith/internal/logger"
	"github.com/works-s/postsmith/internal/metrics"
	"github.com/works-s/postsmith/internal/prompt"
	"github.com/works-s/postsmith/internal/service"
	"github.com/works-s/postsmith/internal/store"
	"github.com/works-s/postsmith/internal/validation"
	"github.com/works-s/postsmith/internal/workspace"
)

// globalOptions are the persistent flags. Empty values defer to env and .env.
type globalOptions struct {
	envFile      string
	dataPath     string
	backend      string
	redisURL     string
	brandProfile string
	verbose      bool
}

// configArgs translates the persistent flags into config.Load arguments.
func (o *globalOptions) configArgs() []string {
	args := []string{"--env-file", o.envFile}
	add := func(name, v string) {
		if v != "" {
			args = append(args, "--"+name, v)
		}
	}
	add("data-path", o.dataPath)
	add("store", o.backend)
	add("redis-url", o.redisURL)
	add("brand-profile", o.brandProfile)
	if o.verbose {
		args = append(args, "--log-level", "debug")
	}
	return args
}

// app holds everything a command needs once the store is open.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	blobs      providers.BlobStore
	records    *store.Records
	vault      *credential.Vault
	prompts    *prompt.Builder
	generation *service.GenerationService
	history    *service.HistoryService
	schedule   *service.ScheduleService
	workspace  *service.WorkspaceService
	backups    *backup.BackupService
	restores   *backup.RestoreService
}

// capabilityFactory lets tests swap the network client.
type capabilityFactory func(cfg *config.Config) llm.Capability

func anthropicCapability(cfg *config.Config) llm.Capability {
	return llm.NewAnthropicClient(llm.AnthropicConfig{
		BaseURL:        cfg.Anthropic.BaseURL,
		Model:          cfg.Anthropic.Model,
		Timeout:        cfg.Anthropic.Timeout,
		PostMaxTokens:  cfg.Anthropic.PostMaxTokens,
		ImageMaxTokens: cfg.Anthropic.ImageMaxTokens,
	})
}

func loadBrand(cfg *config.Config) (brand.Source, error) {
	if cfg.Brand.ProfilePath == "" {
		return brand.Static(brand.Default()), nil
	}
	p, err := brand.Load(cfg.Brand.ProfilePath)
	if err != nil {
		return nil, err
	}
	return brand.Static(p), nil
}

// openApp loads config and opens the record store. The caller must call close.
func openApp(opts *globalOptions, stderr io.Writer, newCapability capabilityFactory) (*app, error) {
	cfg, err := config.Load(opts.configArgs())
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Writer:      stderr,
		Level:       cliLevel(opts.verbose),
		Environment: cfg.App.Environment,
		File:        logger.FileConfig{Path: cfg.Logger.File, MaxSizeMB: cfg.Logger.MaxSizeMB},
	})

	blobs, err := providers.OpenBlobStore(cfg, log.Logger)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	key, err := credential.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		_ = blobs.Close()
		_ = log.Close()
		return nil, err
	}

	src, err := loadBrand(cfg)
	if err != nil {
		_ = blobs.Close()
		_ = log.Close()
		return nil, err
	}

	sl := log.Logger
	records := store.NewRecords(blobs, sl)
	vault := credential.NewVault(blobs, key, cfg.Anthropic.APIKey, sl)
	ws := workspace.New()
	v := validation.New()
	prompts := prompt.NewBuilder(src)

	return &app{
		cfg:        cfg,
		log:        log,
		blobs:      blobs,
		records:    records,
		vault:      vault,
		prompts:    prompts,
		generation: service.NewGenerationService(newCapability(cfg), prompts, records, ws, vault, v, metrics.New(), sl),
		// No search index in the CLI: text queries use substring matching.
		history:   service.NewHistoryService(records, nil, sl),
		schedule:  service.NewScheduleService(records, ws, v, sl),
		workspace: service.NewWorkspaceService(ws, records, v, sl),
		backups:   backup.NewBackupService(records, cfg.Data.BackupDir, sl),
		restores:  backup.NewRestoreService(records, sl),
	}, nil
}

func (a *app) close() {
	if err := a.blobs.Close(); err != nil {
		a.log.Warn("close store", "error", err)
	}
	_ = a.log.Close()
}

func cliLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// appCommand is a command body that needs the record store.
type appCommand func(cmd *cobra.Command, a *app, args []string) error

// appRunner adapts an appCommand to cobra's RunE.
type appRunner func(run appCommand) func(*cobra.Command, []string) error

func newRootCmd() *cobra.Command {
	return newRootCmdWith(anthropicCapability)
}

func newRootCmdWith(newCapability capabilityFactory) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "postctl",
		Short: "Generate and manage Threads posts for Works-S",
		Long: `postctl generates Threads posts for the Works-S air-conditioner cleaning
business and manages the saved history and posting schedule.

It reads the same configuration as the server (flags, environment, .env).`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	pf.StringVar(&opts.dataPath, "data-path", "", "Base path for records and keys")
	pf.StringVar(&opts.backend, "store", "", "Record store backend: badger, sqlite, redis, memory")
	pf.StringVar(&opts.redisURL, "redis-url", "", "Redis URL when --store=redis")
	pf.StringVar(&opts.brandProfile, "brand-profile", "", "Path to a YAML brand profile")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	// withApp opens the store around a command body.
	var withApp appRunner = func(run appCommand) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, cmd.ErrOrStderr(), newCapability)
			if err != nil {
				return err
			}
			defer a.close()
			return run(cmd, a, args)
		}
	}

	rootCmd.AddCommand(
		newHashtagsCmd(),
		newPromptCmd(opts),
		newGenerateCmd(withApp),
		newHistoryCmd(withApp),
		newAnalyticsCmd(withApp),
		newScheduleCmd(withApp),
		newExportCmd(withApp),
		newCredentialCmd(withApp),
		newInspectCmd(withApp),
		newBackupCmd(withApp),
	)

	return rootCmd
}
