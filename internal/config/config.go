package config

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFeedURL is the public line-list feed aggregated per hospital.
const DefaultFeedURL = "https://raw.githubusercontent.com/VasiaPiven/covid19_ua/master/covid19_by_area_type_hosp_dynamics.csv"

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Feed       FeedConfig       `yaml:"feed" mapstructure:"feed"`
	Directory  DirectoryConfig  `yaml:"directory" mapstructure:"directory"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// FeedConfig configures retrieval of the case feed.
type FeedConfig struct {
	URL         string `yaml:"url" mapstructure:"url" validate:"required"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"min=1"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries" validate:"min=1,max=10"`
}

// DirectoryConfig locates the reference hospital directory.
type DirectoryConfig struct {
	Path  string `yaml:"path" mapstructure:"path" validate:"required"`
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
}

// OutputConfig configures the published artifact.
type OutputConfig struct {
	Dir            string `yaml:"dir" mapstructure:"dir" validate:"required"`
	Prefix         string `yaml:"prefix" mapstructure:"prefix" validate:"required"`
	Format         string `yaml:"format" mapstructure:"format" validate:"oneof=csv parquet"`
	DropCategories bool   `yaml:"drop_categories" mapstructure:"drop_categories"`
}

// PipelineConfig tunes the aggregation stages.
type PipelineConfig struct {
	PendingOffsetDays int  `yaml:"pending_offset_days" mapstructure:"pending_offset_days" validate:"min=0,max=60"`
	FillThroughEnd    bool `yaml:"fill_through_end" mapstructure:"fill_through_end"`
}

// StoreConfig configures the database backend. An empty driver disables persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"omitempty,oneof=postgres sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required_with=Driver"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"min=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"min=0"`
}

// ServerConfig configures the dashboard API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures post-run data-quality alerts.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	MaxTotalDrop      int64  `yaml:"max_total_drop" mapstructure:"max_total_drop" validate:"min=0"`
	MaxStaleHours     int    `yaml:"max_stale_hours" mapstructure:"max_stale_hours" validate:"min=0"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"min=0"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("HOSPMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("feed.url", DefaultFeedURL)
	v.SetDefault("feed.user_agent", "hospmon/1.0")
	v.SetDefault("feed.timeout_secs", 60)
	v.SetDefault("feed.max_retries", 3)
	v.SetDefault("directory.path", "data/01_zoz_list240_v2_addresses.xlsx")
	v.SetDefault("directory.sheet", "")
	v.SetDefault("output.dir", "data/outputs")
	v.SetDefault("output.prefix", "monitoring_v5")
	v.SetDefault("output.format", "csv")
	v.SetDefault("output.drop_categories", false)
	v.SetDefault("pipeline.pending_offset_days", 2)
	v.SetDefault("pipeline.fill_through_end", false)
	v.SetDefault("store.driver", "")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.max_total_drop", 0)
	v.SetDefault("monitoring.max_stale_hours", 36)
	v.SetDefault("monitoring.check_interval_secs", 300)

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

// Validate checks field bounds and the requirements of the given command
// mode ("build", "serve", "status" or "migrate").
func (c *Config) Validate(mode string) error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fe.Namespace() + " (" + fe.Tag() + ")"
			}
			return eris.Errorf("config: invalid fields: %s", strings.Join(fields, ", "))
		}
		return eris.Wrap(err, "config: validate")
	}

	switch mode {
	case "build":
		return nil
	case "serve", "status", "migrate":
		if c.Store.Driver == "" {
			return eris.Errorf("config: %s requires store.driver", mode)
		}
		return nil
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
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
