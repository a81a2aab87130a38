package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/gating"
	"github.com/jobtide/jobtide/internal/logger"
	"github.com/jobtide/jobtide/internal/model"
	"github.com/jobtide/jobtide/internal/resume"
	"github.com/jobtide/jobtide/internal/store"
)

const (
	PromptSkip = "skip"
	PromptBack = "back"
)

var errExit = errors.New("exit requested")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify pending postings, refresh resume alignment and recompute the apply queue",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "keep close-call variant selections flagged instead of reviewing them interactively")
	runCmd.Flags().StringP("postings", "p", "", "JSON export of postings to ingest before recomputing the queue")
	runCmd.Flags().String("store", "", "store driver override (memory or postgres)")

	viper.BindPFlag("store.driver", runCmd.Flags().Lookup("store"))
}

// run is the main queue pipeline for the cli.
func run(cmd *cobra.Command) {
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

	logger.Info("starting jobtide", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	st, _, cleanup, err := buildStores(ctx, config, logger)
	if err != nil {
		logger.Fatal("building stores", zap.Error(err))
	}
	defer cleanup()

	if path := cmd.Flag("postings").Value.String(); path != "" {
		imported, err := importPostings(ctx, st, path)
		if err != nil {
			logger.Fatal("importing postings", zap.Error(err))
		}
		logger.Info("imported postings", zap.String("file", path), zap.Int("count", imported))
	}

	provider, err := buildProvider(ctx, config, logger)
	if err != nil {
		logger.Fatal("building embedding provider", zap.Error(err))
	}

	classifier, err := buildClassifier(ctx, config, provider, logger)
	if err != nil {
		logger.Fatal("building classifier", zap.Error(err))
	}

	resumes, err := buildResumeStore(config, provider, st, logger)
	if err != nil {
		logger.Fatal("building resume store", zap.Error(err))
	}

	variants, err := resumes.Refresh(ctx, resume.CentroidFunc(classifier.Centroid))
	if err != nil {
		logger.Fatal("refreshing resume variants", zap.Error(err))
	}
	logger.Info("resume variants refreshed", zap.Int("count", len(variants)))

	service, err := gating.New(gatingConfig(config), st, classifier, resumes, logger)
	if err != nil {
		logger.Fatal("building gating service", zap.Error(err))
	}

	report, err := service.RecomputeQueue(ctx)
	if err != nil {
		logger.Fatal("recomputing the queue", zap.Error(err))
	}

	logger.Info("queue recomputed",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("updated", report.Updated),
		zap.Int("market_intelligence_only", report.MarketIntelligence),
		zap.Int("manual_review", report.ManualReview),
	)

	if len(report.ReviewPostings) == 0 {
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		logger.Info("leaving close-call selections flagged for review",
			zap.Int("count", len(report.ReviewPostings)),
		)
		return
	}

	if err := reviewSelections(ctx, service, report.ReviewPostings, logger); err != nil {
		if errors.Is(err, errExit) {
			return
		}
		logger.Fatal("exiting", zap.Error(err))
	}
}

// reviewSelections walks the close-call postings and asks which variant to
// send for each one.
func reviewSelections(ctx context.Context, service *gating.Service, postings []*model.JobPosting, logger *zap.Logger) error {
	for _, p := range postings {
		items := make([]string, 0, len(archetype.All())+2)
		for _, a := range archetype.All() {
			items = append(items, fmt.Sprintf("%s (%.2f)", a, p.ArchetypeScores[a]))
		}
		items = append(items, PromptSkip, PromptBack)

		prompt := promptui.Select{
			Label: fmt.Sprintf("Variant for %q at %s", p.Title, p.Company),
			Items: items,
		}

		idx, selected, err := prompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return errExit
		case PromptSkip:
			continue
		default:
			choice := archetype.All()[idx]
			if err := service.Confirm(ctx, p, choice); err != nil {
				return err
			}
			logger.Info("variant confirmed",
				zap.String("posting_id", p.ID.String()),
				zap.String("archetype", string(choice)),
			)
		}
	}
	return nil
}

// postingImport is the wire shape of one posting in a JSON export.
type postingImport struct {
	ExternalID  string    `json:"external_id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	PostedAt    time.Time `json:"posted_at"`
}

// importPostings loads a JSON export into the store. IDs are derived from
// source plus external id, so re-importing the same export upserts instead
// of duplicating.
func importPostings(ctx context.Context, st store.Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading postings export %q: %w", path, err)
	}

	var imports []postingImport
	if err := json.Unmarshal(data, &imports); err != nil {
		return 0, fmt.Errorf("parsing postings export %q: %w", path, err)
	}

	imported := 0
	for _, in := range imports {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(in.Source+"/"+in.ExternalID))

		// already classified postings keep their scores
		if existing, err := st.GetPosting(ctx, id); err == nil && existing.Classified() {
			continue
		}

		posting := &model.JobPosting{
			ID:          id,
			ExternalID:  in.ExternalID,
			Source:      in.Source,
			Title:       in.Title,
			Company:     in.Company,
			Description: in.Description,
			PostedAt:    in.PostedAt,
		}
		if err := st.UpsertPosting(ctx, posting); err != nil {
			return 0, fmt.Errorf("upserting posting %s: %w", in.ExternalID, err)
		}
		imported++
	}

	return imported, nil
}
