package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cronwatch/internal/daemon"
	"cronwatch/internal/logger"
	"cronwatch/internal/server"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the monitoring daemon and API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		c, err := buildCore()
		if err != nil {
			return err
		}

		scheduler := daemon.NewScheduler(c.monitor, c.sweeper, cfg.MonitorInterval, cfg.SweepHour, cfg.DisableMonitoring)
		scheduler.Start()

		srv := server.New(c.conns, c.reconciler, c.jobs, c.runs, c.alerts, c.registry, cfg.Port)
		srv.Start()

		logger.Log.Info("cronwatch daemon started",
			zap.Int("port", cfg.Port),
			zap.Duration("monitor_interval", cfg.MonitorInterval),
			zap.Bool("monitoring_disabled", cfg.DisableMonitoring))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Log.Info("shutting down",
				zap.String("signal", sig.String()))
		case <-srv.StopCh():
			logger.Log.Info("stop requested via API")
		}

		scheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
