package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jobtide/jobtide/internal/archetype"
	"github.com/jobtide/jobtide/internal/drift"
	"github.com/jobtide/jobtide/internal/embedding"
	"github.com/jobtide/jobtide/internal/embedding/gemini"
	"github.com/jobtide/jobtide/internal/gating"
	"github.com/jobtide/jobtide/internal/outcome"
	"github.com/jobtide/jobtide/internal/resume"
	"github.com/jobtide/jobtide/internal/secrets"
	"github.com/jobtide/jobtide/internal/store"
	"github.com/jobtide/jobtide/internal/store/postgres"
	"github.com/jobtide/jobtide/internal/store/rediscursor"
)

// buildStores resolves the configured persistence backends. The memory
// driver serves both interfaces; the postgres driver pairs with a Redis
// cursor store when a redis URL is configured.
func buildStores(ctx context.Context, cfg *Config, logger *zap.Logger) (store.Store, store.CursorStore, func(), error) {
	storeCfg := cfg.Store
	if storeCfg == nil || storeCfg.Driver == "" || storeCfg.Driver == "memory" {
		mem := store.NewMemory()
		return mem, mem, func() {}, nil
	}

	if storeCfg.Driver != "postgres" {
		return nil, nil, nil, fmt.Errorf("unsupported store driver: %s", storeCfg.Driver)
	}

	databaseURL, err := secrets.Load(secrets.Source{
		Name:  "postgres url",
		Value: storeCfg.PostgresURL,
		File:  storeCfg.PostgresURLFile,
		Env:   "JOBTIDE_POSTGRES_URL",
	})
	if err != nil {
		return nil, nil, nil, err
	}

	pg, err := postgres.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, nil, err
	}

	if strings.TrimSpace(storeCfg.RedisURL) == "" {
		logger.Warn("no redis url configured; sync cursors will not survive restarts")
		mem := store.NewMemory()
		return pg, mem, pg.Close, nil
	}

	cursors, err := rediscursor.New(ctx, storeCfg.RedisURL, app)
	if err != nil {
		pg.Close()
		return nil, nil, nil, err
	}

	cleanup := func() {
		cursors.Close()
		pg.Close()
	}
	return pg, cursors, cleanup, nil
}

// buildProvider resolves the embedding provider. Gemini is always wrapped
// in a failover to the deterministic fallback so an outage degrades
// embedding quality instead of stopping classification.
func buildProvider(ctx context.Context, cfg *Config, logger *zap.Logger) (embedding.Provider, error) {
	embCfg := cfg.Embedding
	if embCfg == nil || embCfg.Provider == "" || embCfg.Provider == "fallback" {
		dim := 0
		if embCfg != nil {
			dim = embCfg.Dimension
		}
		return embedding.NewFallback(dim), nil
	}

	if embCfg.Provider != "gemini" {
		return nil, fmt.Errorf("unsupported embedding provider: %s", embCfg.Provider)
	}
	if embCfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required for the gemini embedding provider")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: embCfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set embedding.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	dim := embCfg.Dimension
	if dim <= 0 {
		dim = embedding.DefaultDimension
	}

	primary, err := gemini.New(ctx, apiKey, embCfg.Gemini.Model, dim)
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", "gemini"),
		zap.String("model", primary.Model()),
		zap.Int("dimension", dim),
	)

	return embedding.NewFailover(primary, embedding.NewFallback(dim), logger), nil
}

func buildClassifier(ctx context.Context, cfg *Config, provider embedding.Provider, logger *zap.Logger) (*archetype.Classifier, error) {
	c := archetype.DefaultClassifierConfig()
	if override := cfg.Classifier; override != nil {
		if override.DisableEmbeddings {
			c.UseEmbeddings = false
		}
		if override.IndicatorWeight > 0 {
			c.IndicatorWeight = override.IndicatorWeight
		}
		if override.EmbeddingGate > 0 {
			c.EmbeddingGate = override.EmbeddingGate
		}
		if override.EmbeddingWeight > 0 {
			c.EmbeddingWeight = override.EmbeddingWeight
		}
		if override.MetadataPrior > 0 {
			c.MetadataPrior = override.MetadataPrior
		}
	}

	return archetype.NewClassifier(ctx, c, provider, logger)
}

func buildResumeStore(cfg *Config, provider embedding.Provider, st store.Store, logger *zap.Logger) (*resume.Store, error) {
	paths := make(map[archetype.Archetype]string, len(cfg.Resumes))
	for key, path := range cfg.Resumes {
		a := archetype.Archetype(strings.ToLower(strings.TrimSpace(key)))
		if !a.Valid() {
			return nil, fmt.Errorf("unknown archetype %q in resumes config", key)
		}
		paths[a] = path
	}
	return resume.New(paths, provider, st, logger), nil
}

func gatingConfig(cfg *Config) gating.Config {
	c := gating.DefaultConfig()
	if override := cfg.Gating; override != nil {
		if override.ReviewMargin > 0 {
			c.ReviewMargin = override.ReviewMargin
		}
		if override.MinCombinedFit > 0 {
			c.MinCombinedFit = override.MinCombinedFit
		}
	}
	return c
}

func driftConfig(cfg *Config) drift.Config {
	c := drift.DefaultConfig()
	if override := cfg.Drift; override != nil {
		if override.WindowDays > 0 {
			c.WindowDays = override.WindowDays
		}
		if override.MinSamples > 0 {
			c.MinSamples = override.MinSamples
		}
		if override.ShiftThreshold > 0 {
			c.ShiftThreshold = override.ShiftThreshold
		}
		if override.StalenessThreshold > 0 {
			c.StalenessThreshold = override.StalenessThreshold
		}
		if override.RewriteCooldownDays > 0 {
			c.RewriteCooldownDays = override.RewriteCooldownDays
		}
	}
	return c
}

func syncConfig(cfg *Config) outcome.SyncConfig {
	c := outcome.DefaultSyncConfig()
	if override := cfg.Outcome; override != nil {
		if override.Account != "" {
			c.Account = override.Account
		}
		if override.BatchLimit > 0 {
			c.BatchLimit = override.BatchLimit
		}
		if override.GhostAfterDays > 0 {
			c.GhostAfterDays = override.GhostAfterDays
		}
	}
	return c
}
