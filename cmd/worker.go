package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/messaging-permissions/internal/core/events"
	"github.com/frahmantamala/messaging-permissions/internal/maintenance"
	"github.com/frahmantamala/messaging-permissions/internal/user"
	userpostgres "github.com/frahmantamala/messaging-permissions/internal/user/postgres"
	"github.com/frahmantamala/messaging-permissions/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start background workers such as the stale request sweep.`,
}

// Sweep worker command
var sweepWorkerCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reject pending requests whose window has passed",
	Long:  `Run the stale pending request sweep on the configured interval, or once with --once.`,
	Run: func(cmd *cobra.Command, args []string) {
		startSweepWorker()
	},
}

var (
	sweepOnce     bool
	sweepInterval time.Duration
)

func startSweepWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if config.Database.Driver == "memory" {
		fmt.Fprintln(os.Stderr, "the memory driver keeps permissions inside the server; run the server with --with-sweeper instead")
		os.Exit(1)
	}

	log := logger.LoggerWrapper()

	storage, err := openStorage(config.Database, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer storage.Close()

	users := user.NewService(userpostgres.NewUserRepository(storage.Gorm), log)
	service := buildPermissionService(config, storage, users, events.NewEventBus(log), log)

	interval := sweepInterval
	if interval <= 0 {
		interval = config.Messaging.SweepInterval
	}
	scheduler := maintenance.NewScheduler(service, interval, log)

	if sweepOnce {
		if _, err := scheduler.RunOnce(context.Background()); err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	log.Info("sweep worker is running. Press Ctrl+C to stop.", "interval", interval.String())

	<-ctx.Done()
	log.Info("received signal, shutting down sweep worker")
	scheduler.Stop()
	log.Info("sweep worker shutdown complete")
}

func init() {
	sweepWorkerCmd.Flags().BoolVar(&sweepOnce, "once", false, "Run a single sweep and exit")
	sweepWorkerCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Sweep interval (overrides config)")

	workerCmd.AddCommand(sweepWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
