package cmd

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "jobtide"
)

type Config struct {
	Store      *StoreConfig      `mapstructure:"store"`
	Embedding  *EmbeddingConfig  `mapstructure:"embedding"`
	Resumes    map[string]string `mapstructure:"resumes"`
	Classifier *ClassifierConfig `mapstructure:"classifier"`
	Gating     *GatingConfig     `mapstructure:"gating"`
	Drift      *DriftConfig      `mapstructure:"drift"`
	Outcome    *OutcomeConfig    `mapstructure:"outcome"`
}

type StoreConfig struct {
	Driver          string `mapstructure:"driver"`
	PostgresURL     string `mapstructure:"postgres-url"`
	PostgresURLFile string `mapstructure:"postgres-url-file"`
	RedisURL        string `mapstructure:"redis-url"`
}

type EmbeddingConfig struct {
	Provider  string        `mapstructure:"provider"`
	Dimension int           `mapstructure:"dimension"`
	Gemini    *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

// ClassifierConfig overrides the classifier defaults; zero values keep the
// tuned defaults.
type ClassifierConfig struct {
	DisableEmbeddings bool    `mapstructure:"disable-embeddings"`
	IndicatorWeight   float64 `mapstructure:"indicator-weight"`
	EmbeddingGate     float64 `mapstructure:"embedding-gate"`
	EmbeddingWeight   float64 `mapstructure:"embedding-weight"`
	MetadataPrior     float64 `mapstructure:"metadata-prior"`
}

type GatingConfig struct {
	ReviewMargin   float64 `mapstructure:"review-margin"`
	MinCombinedFit float64 `mapstructure:"min-combined-fit"`
}

type DriftConfig struct {
	WindowDays          int     `mapstructure:"window-days"`
	MinSamples          int     `mapstructure:"min-samples"`
	ShiftThreshold      float64 `mapstructure:"shift-threshold"`
	StalenessThreshold  float64 `mapstructure:"staleness-threshold"`
	RewriteCooldownDays int     `mapstructure:"rewrite-cooldown-days"`
	IntervalHours       int     `mapstructure:"interval-hours"`
}

type OutcomeConfig struct {
	Account        string `mapstructure:"account"`
	BatchLimit     int    `mapstructure:"batch-limit"`
	GhostAfterDays int    `mapstructure:"ghost-after-days"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jobtide classifies job postings, gates the apply queue and tracks market drift",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("store.redis-url", "JOBTIDE_REDIS_URL"); err != nil {
		log.Fatalf("binding JOBTIDE_REDIS_URL environment variable: %v", err)
	}
	if err := viper.BindEnv("store.postgres-url", "JOBTIDE_POSTGRES_URL"); err != nil {
		log.Fatalf("binding JOBTIDE_POSTGRES_URL environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jobtide.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only the pipeline commands need a config; version runs without one.
	if runCmd.CalledAs() == "" && driftCmd.CalledAs() == "" && syncCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
