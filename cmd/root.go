package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"cronwatch/internal/config"
	"cronwatch/internal/connection"
	"cronwatch/internal/db"
	"cronwatch/internal/logger"
	"cronwatch/internal/model"
	"cronwatch/internal/monitor"
	"cronwatch/internal/platform"
	"cronwatch/internal/platform/supabase"
	"cronwatch/internal/reconcile"
	"cronwatch/internal/repository"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:   "cronwatch",
	Short: "Aggregate and monitor scheduled jobs across platforms",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		logger.Init(debug)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		// Commands that only talk to a running daemon, or need no
		// stored state at all, skip the key check and the database.
		clientCmds := map[string]bool{
			"status": true, "stop": true, "keygen": true,
		}
		if clientCmds[cmd.Name()] {
			return nil
		}

		return cfg.RequireEncryptionKey()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// core bundles the wired components every stateful command needs. It is
// built once per command invocation and passed down explicitly.
type core struct {
	db         *gorm.DB
	conns      *connection.Store
	jobs       *repository.JobRepository
	runs       *repository.RunRepository
	alerts     *repository.AlertRepository
	registry   *platform.Registry
	reconciler *reconcile.Reconciler
	monitor    *monitor.Monitor
	sweeper    *monitor.Sweeper
}

func buildCore() (*core, error) {
	gdb, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	connRepo := repository.NewConnectionRepository(gdb)
	jobRepo := repository.NewJobRepository(gdb)
	runRepo := repository.NewRunRepository(gdb)
	alertRepo := repository.NewAlertRepository(gdb)

	conns := connection.NewStore(connRepo, cfg.EncryptionKey)

	registry := platform.NewRegistry()
	registry.Register(model.PlatformSupabase, supabase.New(&http.Client{Timeout: 30 * time.Second}))

	return &core{
		db:         gdb,
		conns:      conns,
		jobs:       jobRepo,
		runs:       runRepo,
		alerts:     alertRepo,
		registry:   registry,
		reconciler: reconcile.NewReconciler(conns, jobRepo, registry),
		monitor:    monitor.New(conns, jobRepo, runRepo, alertRepo, registry, cfg.WorkerLimit),
		sweeper:    monitor.NewSweeper(jobRepo, runRepo, alertRepo),
	}, nil
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.Port, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
