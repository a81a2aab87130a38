package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/drift"
	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/scheduler"
	"github.com/jobtide/jobtide/internal/store"
)

var driftCmd = &cobra.Command{
	Use:   "drift",
	Short: "Run a drift cycle: centroid refresh, market-shift and staleness checks, rewrite triggers",
	Run: func(cmd *cobra.Command, _ []string) {
		runDrift(cmd)
	},
}

func init() {
	rootCmd.AddCommand(driftCmd)

	driftCmd.Flags().BoolP("watch", "w", false, "keep running cycles on a schedule instead of exiting after one")
	driftCmd.Flags().IntP("interval", "i", 0, "hours between cycles in watch mode (overrides drift.interval-hours)")
	driftCmd.Flags().String("ack", "", "acknowledge the alert with the given id and exit")
	driftCmd.Flags().String("store", "", "store driver override (memory or postgres)")

	viper.BindPFlag("store.driver", driftCmd.Flags().Lookup("store"))
}

func runDrift(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	st, _, cleanup, err := buildStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("building stores", zap.Error(err))
	}
	defer cleanup()

	if raw := cmd.Flag("ack").Value.String(); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			logger.Fatal("parsing alert id", zap.String("id", raw), zap.Error(err))
		}
		if err := st.AcknowledgeAlert(ctx, id); err != nil {
			logger.Fatal("acknowledging alert", zap.String("id", raw), zap.Error(err))
		}
		logger.Info("alert acknowledged", zap.String("id", raw))
		return
	}

	provider, err := buildProvider(ctx, config, logger)
	if err != nil {
		logger.Fatal("building embedding provider", zap.Error(err))
	}

	engine, err := drift.New(driftConfig(config), st, provider, logger)
	if err != nil {
		logger.Fatal("building drift engine", zap.Error(err))
	}

	if cmd.Flag("watch").Value.String() == "true" {
		watchDrift(ctx, cmd, config, engine, logger)
		return
	}

	report, err := engine.RunCycle(ctx)
	if err != nil {
		logger.Fatal("running drift cycle", zap.Error(err))
	}

	for _, ar := range report.Archetypes {
		logger.Info("drift cycle archetype done",
			zap.String("archetype", string(ar.Archetype)),
			zap.Bool("centroid_written", ar.CentroidWritten),
			zap.String("skip_reason", ar.SkipReason),
			zap.Float64("shift", ar.Shift),
			zap.Float64("staleness", ar.Staleness),
			zap.Strings("alerts_opened", ar.AlertsOpened),
		)
	}

	printOpenAlerts(ctx, st, logger)
}

func watchDrift(ctx context.Context, cmd *cobra.Command, config *Config, engine *drift.Engine, logger *zap.Logger) {
	interval := 0
	if config.Drift != nil {
		interval = config.Drift.IntervalHours
	}
	if flagged, err := cmd.Flags().GetInt("interval"); err == nil && flagged > 0 {
		interval = flagged
	}
	if interval <= 0 {
		interval = 24
	}

	sched := scheduler.New(engine, interval, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("starting drift scheduler", zap.Error(err))
	}
	defer sched.Stop()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

// printOpenAlerts lists every unacknowledged alert so the operator sees
// what still needs a decision or an --ack.
func printOpenAlerts(ctx context.Context, st store.Store, logger *zap.Logger) {
	types := []string{model.AlertMarketShift, model.AlertResumeStale, model.AlertRewriteTriggered}

	open := 0
	for _, a := range archetype.All() {
		for _, alertType := range types {
			alerts, err := st.UnacknowledgedAlerts(ctx, a, alertType)
			if err != nil {
				logger.Warn("listing alerts", zap.String("archetype", string(a)), zap.Error(err))
				continue
			}
			for _, alert := range alerts {
				open++
				logger.Info("open alert",
					zap.String("id", alert.ID.String()),
					zap.String("archetype", string(alert.Archetype)),
					zap.String("type", alert.Type),
					zap.Float64("metric", alert.MetricValue),
					zap.Time("created_at", alert.CreatedAt),
				)
			}
		}
	}

	if open == 0 {
		logger.Info("no open alerts")
	}
}
