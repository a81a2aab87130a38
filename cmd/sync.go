package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/analytics"
	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/outcome"
	"github.com/jobtide/jobtide/internal/store"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Poll inbound messages, match them to applications, record outcomes and print feedback analytics",
	Run: func(cmd *cobra.Command, _ []string) {
		runSync(cmd)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringP("messages", "m", "", "JSON export of inbound messages to sync from")
	syncCmd.Flags().String("store", "", "store driver override (memory or postgres)")

	syncCmd.MarkFlagRequired("messages")
	viper.BindPFlag("store.driver", syncCmd.Flags().Lookup("store"))
}

func runSync(cmd *cobra.Command) {
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

	st, cursors, cleanup, err := buildStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("building stores", zap.Error(err))
	}
	defer cleanup()

	source, err := outcome.NewFileSource(cmd.Flag("messages").Value.String())
	if err != nil {
		logger.Fatal("opening message source", zap.Error(err))
	}

	matcher, err := outcome.NewMatcher(outcome.DefaultMatchConfig(), st, logger)
	if err != nil {
		logger.Fatal("building matcher", zap.Error(err))
	}

	syncer, err := outcome.NewSyncer(syncConfig(config), source, st, cursors, matcher, logger)
	if err != nil {
		logger.Fatal("building syncer", zap.Error(err))
	}

	report, err := syncer.Run(ctx)
	if err != nil {
		logger.Fatal("syncing messages", zap.Error(err))
	}

	logger.Info("sync finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("dropped", report.Dropped),
		zap.Int("auto_matched", report.AutoMatched),
		zap.Int("manual_review", report.ManualReview),
		zap.Int("unmatched", report.Unmatched),
		zap.Int("ghosted", report.Ghosted),
	)

	printAnalytics(ctx, st, logger)
}

// printAnalytics aggregates resolved applications and logs the conversion
// buckets. Sparse data yields an empty report, which is fine.
func printAnalytics(ctx context.Context, st store.Store, logger *zap.Logger) {
	apps, err := st.ResolvedApplications(ctx)
	if err != nil {
		logger.Warn("loading resolved applications", zap.Error(err))
		return
	}

	report, err := analytics.Aggregate(analytics.DefaultConfig(), apps)
	if err != nil {
		logger.Warn("aggregating feedback", zap.Error(err))
		return
	}

	for _, b := range report.ByVariant {
		logger.Info("variant conversion",
			zap.String("variant", b.Key),
			zap.Int("total", b.Total),
			zap.Int("positive", b.Positive),
			zap.Float64("positive_rate", b.PositiveRate),
		)
	}
	for _, b := range report.ByKeyword {
		logger.Info("keyword conversion",
			zap.String("keyword", b.Key),
			zap.Int("total", b.Total),
			zap.Int("positive", b.Positive),
			zap.Float64("positive_rate", b.PositiveRate),
		)
	}
	for _, b := range report.ByFamily {
		logger.Info("title family advisory",
			zap.String("family", b.Key),
			zap.Int("total", b.Total),
			zap.Float64("positive_rate", b.PositiveRate),
			zap.String("best_variant", string(b.BestVariant)),
		)
	}
}
