package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input   InputConfig   `yaml:"input" mapstructure:"input"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Linker  LinkerConfig  `yaml:"linker" mapstructure:"linker"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the input snapshots.
type InputConfig struct {
	Dir            string   `yaml:"dir" mapstructure:"dir"`
	AccountTable   string   `yaml:"account_table" mapstructure:"account_table"`
	ContactTable   string   `yaml:"contact_table" mapstructure:"contact_table"`
	ManualLinkages string   `yaml:"manual_linkages" mapstructure:"manual_linkages"`
	Regions        []string `yaml:"regions" mapstructure:"regions"` // empty = any region
}

// OutputConfig configures where output tables are written.
type OutputConfig struct {
	Dir         string         `yaml:"dir" mapstructure:"dir"`
	Compression string         `yaml:"compression" mapstructure:"compression"`
	Postgres    PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	S3          S3Config       `yaml:"s3" mapstructure:"s3"`
}

// PostgresConfig configures the optional Postgres sink.
type PostgresConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// S3Config configures the optional S3 mirror.
type S3Config struct {
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
	Region   string `yaml:"region" mapstructure:"region"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// LinkerConfig holds the match thresholds and worker settings.
type LinkerConfig struct {
	FuzzyThreshold     float64        `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	CorroborationFloor float64        `yaml:"corroboration_floor" mapstructure:"corroboration_floor"`
	Boost              float64        `yaml:"boost" mapstructure:"boost"`
	ParentConfidence   float64        `yaml:"parent_confidence" mapstructure:"parent_confidence"`
	ContactConfidence  float64        `yaml:"contact_confidence" mapstructure:"contact_confidence"`
	Workers            int            `yaml:"workers" mapstructure:"workers"` // 0 = GOMAXPROCS
	Blocking           BlockingConfig `yaml:"blocking" mapstructure:"blocking"`
}

// BlockingConfig configures the normalized-name prefix pre-filter.
type BlockingConfig struct {
	Enabled   bool `yaml:"enabled" mapstructure:"enabled"`
	PrefixLen int  `yaml:"prefix_len" mapstructure:"prefix_len"`
}

// StoreConfig configures the run ledger.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile     string `yaml:"textfile" mapstructure:"textfile"`
	LedgerWindow int    `yaml:"ledger_window" mapstructure:"ledger_window"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the configuration is usable for the given mode.
// Modes: "link", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "link":
		if c.Input.Dir == "" {
			errs = append(errs, "input.dir is required")
		}
		if c.Input.AccountTable == "" {
			errs = append(errs, "input.account_table is required")
		}
		if c.Output.Dir == "" {
			errs = append(errs, "output.dir is required")
		}
		switch strings.ToLower(c.Output.Compression) {
		case "", "snappy", "gzip", "zstd", "none", "uncompressed":
		default:
			errs = append(errs, fmt.Sprintf("output.compression %q is not one of snappy, gzip, zstd, none", c.Output.Compression))
		}
		errs = append(errs, c.Linker.validate()...)
	case "runs":
		// Ledger reads only.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (l LinkerConfig) validate() []string {
	var errs []string
	if l.FuzzyThreshold <= 0 || l.FuzzyThreshold > 1 {
		errs = append(errs, "linker.fuzzy_threshold must be in (0, 1]")
	}
	if l.CorroborationFloor < 0 || l.CorroborationFloor > l.FuzzyThreshold {
		errs = append(errs, "linker.corroboration_floor must be in [0, fuzzy_threshold]")
	}
	if l.Boost < 0 || l.Boost > 100 {
		errs = append(errs, "linker.boost must be in [0, 100]")
	}
	if l.ParentConfidence < 0 || l.ParentConfidence > 100 {
		errs = append(errs, "linker.parent_confidence must be in [0, 100]")
	}
	if l.ContactConfidence < 0 || l.ContactConfidence > 100 {
		errs = append(errs, "linker.contact_confidence must be in [0, 100]")
	}
	if l.Workers < 0 {
		errs = append(errs, "linker.workers must be >= 0")
	}
	if l.Blocking.Enabled && l.Blocking.PrefixLen < 1 {
		errs = append(errs, "linker.blocking.prefix_len must be >= 1")
	}
	return errs
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.dir", "./data/silver")
	v.SetDefault("input.account_table", "account")
	v.SetDefault("input.contact_table", "contact")
	v.SetDefault("input.manual_linkages", "./data/gold/manual_account_linkages.json")
	v.SetDefault("input.regions", []string{})
	v.SetDefault("output.dir", "./data/gold")
	v.SetDefault("output.compression", "snappy")
	v.SetDefault("output.postgres.database_url", "")
	v.SetDefault("output.postgres.schema", "gold")
	v.SetDefault("output.s3.bucket", "")
	v.SetDefault("output.s3.prefix", "gold/")
	v.SetDefault("output.s3.region", "us-east-1")
	v.SetDefault("output.s3.endpoint", "")
	v.SetDefault("linker.fuzzy_threshold", 0.85)
	v.SetDefault("linker.corroboration_floor", 0.70)
	v.SetDefault("linker.boost", 10.0)
	v.SetDefault("linker.parent_confidence", 90.0)
	v.SetDefault("linker.contact_confidence", 85.0)
	v.SetDefault("linker.workers", 0)
	v.SetDefault("linker.blocking.enabled", false)
	v.SetDefault("linker.blocking.prefix_len", 3)
	v.SetDefault("store.database_url", "linker.db")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.ledger_window", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
