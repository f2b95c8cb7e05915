package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig             `yaml:"store" mapstructure:"store"`
	Places   PlacesConfig            `yaml:"places" mapstructure:"places"`
	Search   SearchConfig            `yaml:"search" mapstructure:"search"`
	Registry RegistryConfig          `yaml:"registry" mapstructure:"registry"`
	Budgets  map[string]BudgetConfig `yaml:"budgets" mapstructure:"budgets"`
	Pipeline PipelineConfig          `yaml:"pipeline" mapstructure:"pipeline"`
	Scorer   ScorerConfig            `yaml:"scorer" mapstructure:"scorer"`
	Batch    BatchConfig             `yaml:"batch" mapstructure:"batch"`
	Server   ServerConfig            `yaml:"server" mapstructure:"server"`
	Log      LogConfig               `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the attempt and record store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig holds Google Places API settings.
type PlacesConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SearchConfig holds web search API settings.
type SearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// RegistryConfig configures the state business registry dataset. Column
// values are zero-based indices into the source CSV.
type RegistryConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	URL       string `yaml:"url" mapstructure:"url"`
	State     string `yaml:"state" mapstructure:"state"`
	NameCol   int    `yaml:"name_col" mapstructure:"name_col"`
	StatusCol int    `yaml:"status_col" mapstructure:"status_col"`
	TypeCol   int    `yaml:"type_col" mapstructure:"type_col"`
	YearCol   int    `yaml:"year_col" mapstructure:"year_col"`
	StateCol  int    `yaml:"state_col" mapstructure:"state_col"`
}

// BudgetConfig configures one source's fixed-window call budget.
type BudgetConfig struct {
	MaxCallsPerWindow int `yaml:"max_calls_per_window" mapstructure:"max_calls_per_window"`
	WindowSecs        int `yaml:"window_secs" mapstructure:"window_secs"`
}

// PipelineConfig configures the pass coordinator.
type PipelineConfig struct {
	PassFile              string  `yaml:"pass_file" mapstructure:"pass_file"`
	CompletenessThreshold float64 `yaml:"completeness_threshold" mapstructure:"completeness_threshold"`
	QualifyThreshold      int     `yaml:"qualify_threshold" mapstructure:"qualify_threshold"`
}

// ScorerConfig configures the qualification rubric. Weights are the point
// caps per component and should sum to 100.
type ScorerConfig struct {
	BusinessSizeWeight    float64 `yaml:"business_size_weight" mapstructure:"business_size_weight"`
	DigitalPresenceWeight float64 `yaml:"digital_presence_weight" mapstructure:"digital_presence_weight"`
	LocationWeight        float64 `yaml:"location_weight" mapstructure:"location_weight"`
	IndustryTierWeight    float64 `yaml:"industry_tier_weight" mapstructure:"industry_tier_weight"`
	RevenueWeight         float64 `yaml:"revenue_weight" mapstructure:"revenue_weight"`
	CompetitiveGapWeight  float64 `yaml:"competitive_gap_weight" mapstructure:"competitive_gap_weight"`

	MinEmployees int   `yaml:"min_employees" mapstructure:"min_employees"`
	MaxEmployees int   `yaml:"max_employees" mapstructure:"max_employees"`
	MinRevenue   int64 `yaml:"min_revenue" mapstructure:"min_revenue"`
	MaxRevenue   int64 `yaml:"max_revenue" mapstructure:"max_revenue"`

	MinRating float64 `yaml:"min_rating" mapstructure:"min_rating"`

	TargetStates      []string `yaml:"target_states" mapstructure:"target_states"`
	TierOneIndustries []string `yaml:"tier_one_industries" mapstructure:"tier_one_industries"`
	TierTwoIndustries []string `yaml:"tier_two_industries" mapstructure:"tier_two_industries"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentTargets int `yaml:"max_concurrent_targets" mapstructure:"max_concurrent_targets"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the fields a given run mode depends on. Modes mirror
// the CLI commands: "process" covers the pipeline commands, "serve" the
// status server, "regsync" the registry dataset sync.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if c.Pipeline.CompletenessThreshold < 0 || c.Pipeline.CompletenessThreshold > 1 {
		errs = append(errs, "pipeline.completeness_threshold must be in [0,1]")
	}
	if c.Pipeline.QualifyThreshold < 0 || c.Pipeline.QualifyThreshold > 100 {
		errs = append(errs, "pipeline.qualify_threshold must be in [0,100]")
	}

	switch mode {
	case "process":
		if c.Places.Key == "" {
			errs = append(errs, "places.key is required")
		}
		if c.Batch.MaxConcurrentTargets < 1 || c.Batch.MaxConcurrentTargets > 50 {
			errs = append(errs, "batch.max_concurrent_targets must be between 1 and 50")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "regsync":
		if c.Registry.URL == "" {
			errs = append(errs, "registry.url is required")
		}
		if c.Registry.State == "" {
			errs = append(errs, "registry.state is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "prospector.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_targets", 5)
	v.SetDefault("places.base_url", "https://places.googleapis.com")
	v.SetDefault("search.base_url", "https://s.jina.ai")
	v.SetDefault("registry.path", "registry.db")
	v.SetDefault("registry.name_col", 0)
	v.SetDefault("registry.status_col", 1)
	v.SetDefault("registry.type_col", 2)
	v.SetDefault("registry.year_col", 3)
	v.SetDefault("registry.state_col", -1)
	v.SetDefault("pipeline.completeness_threshold", 0.8)
	v.SetDefault("pipeline.qualify_threshold", 70)
	v.SetDefault("budgets.google_places.max_calls_per_window", 100)
	v.SetDefault("budgets.google_places.window_secs", 3600)
	v.SetDefault("budgets.places_details.max_calls_per_window", 100)
	v.SetDefault("budgets.places_details.window_secs", 3600)
	v.SetDefault("budgets.web_search.max_calls_per_window", 200)
	v.SetDefault("budgets.web_search.window_secs", 3600)
	v.SetDefault("budgets.web_sizing.max_calls_per_window", 200)
	v.SetDefault("budgets.web_sizing.window_secs", 3600)
	v.SetDefault("scorer.business_size_weight", 25)
	v.SetDefault("scorer.digital_presence_weight", 25)
	v.SetDefault("scorer.location_weight", 10)
	v.SetDefault("scorer.industry_tier_weight", 15)
	v.SetDefault("scorer.revenue_weight", 15)
	v.SetDefault("scorer.competitive_gap_weight", 10)
	v.SetDefault("scorer.min_employees", 5)
	v.SetDefault("scorer.max_employees", 500)
	v.SetDefault("scorer.min_revenue", 500_000)
	v.SetDefault("scorer.max_revenue", 50_000_000)
	v.SetDefault("scorer.min_rating", 3.5)
	v.SetDefault("scorer.target_states", []string{"OK", "TX", "KS", "AR", "MO"})
	v.SetDefault("scorer.tier_one_industries", []string{
		"plumbing", "hvac", "roofing", "electrical", "landscaping",
	})
	v.SetDefault("scorer.tier_two_industries", []string{
		"construction", "cleaning", "pest control", "painting",
	})

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
