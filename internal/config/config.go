// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blue-raster/workforce-bridge/internal/codes"
)

// Config holds the full application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source" mapstructure:"source"`
	Features FeatureConfig  `yaml:"features" mapstructure:"features"`
	Dispatch DispatchConfig `yaml:"dispatch" mapstructure:"dispatch"`
	Auth     AuthConfig     `yaml:"auth" mapstructure:"auth"`
	Poll     PollConfig     `yaml:"poll" mapstructure:"poll"`
	Codes    CodesConfig    `yaml:"codes" mapstructure:"codes"`
	Notify   NotifyConfig   `yaml:"notify" mapstructure:"notify"`
	Digest   DigestConfig   `yaml:"digest" mapstructure:"digest"`
	RunLog   RunLogConfig   `yaml:"runlog" mapstructure:"runlog"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes the maintenance-record layer this service polls.
type SourceConfig struct {
	URL        string            `yaml:"url" mapstructure:"url"`
	RecordType int               `yaml:"record_type" mapstructure:"record_type"`
	Fields     SourceFieldConfig `yaml:"fields" mapstructure:"fields"`
}

// SourceFieldConfig maps logical maintenance-record fields to the layer's
// actual field names. Casing must match the layer schema exactly; several
// historical breakages came from silently re-cased fields.
type SourceFieldConfig struct {
	ObjectID    string `yaml:"object_id" mapstructure:"object_id"`
	RecordType  string `yaml:"record_type" mapstructure:"record_type"`
	FeatureRef  string `yaml:"feature_ref" mapstructure:"feature_ref"`
	Created     string `yaml:"created" mapstructure:"created"`
	Type        string `yaml:"type" mapstructure:"type"`
	Priority    string `yaml:"priority" mapstructure:"priority"`
	DueDate     string `yaml:"due_date" mapstructure:"due_date"`
	Description string `yaml:"description" mapstructure:"description"`
}

// FeatureConfig describes the located-feature layer that maintenance
// records reference.
type FeatureConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	KeyField string `yaml:"key_field" mapstructure:"key_field"`
	IDField  string `yaml:"id_field" mapstructure:"id_field"`
}

// DispatchConfig describes the workforce assignments layer.
type DispatchConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	CreatedField string `yaml:"created_field" mapstructure:"created_field"`
}

// AuthConfig holds token-service credentials. An empty URL disables token
// auth entirely (pre-auth deployments).
type AuthConfig struct {
	TokenURL string `yaml:"token_url" mapstructure:"token_url"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Referer  string `yaml:"referer" mapstructure:"referer"`
}

// PollConfig controls the polling cadence and query window.
type PollConfig struct {
	IntervalMinutes int     `yaml:"interval_minutes" mapstructure:"interval_minutes"`
	LookbackMinutes int     `yaml:"lookback_minutes" mapstructure:"lookback_minutes"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// Interval returns the polling interval as a duration.
func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalMinutes) * time.Minute
}

// Lookback returns the query lookback as a duration.
func (p PollConfig) Lookback() time.Duration {
	return time.Duration(p.LookbackMinutes) * time.Minute
}

// CodesConfig holds the configured code/label pairs for the two lookup
// tables.
type CodesConfig struct {
	Priority       []codes.Pair `yaml:"priority" mapstructure:"priority"`
	AssignmentType []codes.Pair `yaml:"assignment_type" mapstructure:"assignment_type"`
}

// NotifyConfig configures email notifications.
type NotifyConfig struct {
	SMTPHost            string   `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort            int      `yaml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser            string   `yaml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPassword        string   `yaml:"smtp_password" mapstructure:"smtp_password"`
	From                string   `yaml:"from" mapstructure:"from"`
	To                  []string `yaml:"to" mapstructure:"to"`
	Subject             string   `yaml:"subject" mapstructure:"subject"`
	DisplayZone         string   `yaml:"display_zone" mapstructure:"display_zone"`
	UrgentPriorityFloor int      `yaml:"urgent_priority_floor" mapstructure:"urgent_priority_floor"`
}

// DigestConfig controls the end-of-day summary email.
type DigestConfig struct {
	Hour          int `yaml:"hour" mapstructure:"hour"`
	LookbackHours int `yaml:"lookback_hours" mapstructure:"lookback_hours"`
}

// RunLogConfig configures the run-history store.
type RunLogConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the serve-mode HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/workforce-bridge")

	// Environment
	v.SetEnvPrefix("WORKFORCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("source.record_type", 2)
	v.SetDefault("source.fields.object_id", "OBJECTID")
	v.SetDefault("source.fields.record_type", "MaintenanceRecordType")
	v.SetDefault("source.fields.feature_ref", "FeatureID")
	v.SetDefault("source.fields.created", "CreationDate")
	v.SetDefault("source.fields.type", "PlantMaintenanceType")
	v.SetDefault("source.fields.priority", "MaintenancePriority")
	// The upstream layer schema carries this misspelling; do not "fix" it.
	v.SetDefault("source.fields.due_date", "MaintainanceDueDate")
	v.SetDefault("source.fields.description", "WorkOrderDescription")

	v.SetDefault("features.key_field", "GlobalID")
	v.SetDefault("features.id_field", "PlantCenterID")
	v.SetDefault("dispatch.created_field", "CreationDate")

	v.SetDefault("poll.interval_minutes", 60)
	v.SetDefault("poll.lookback_minutes", 60)
	v.SetDefault("poll.timeout_secs", 30)
	v.SetDefault("poll.requests_per_sec", 4)

	v.SetDefault("codes.priority", []map[string]any{
		{"code": 0, "label": ""},
		{"code": 1, "label": "Low"},
		{"code": 2, "label": "Medium"},
		{"code": 3, "label": "High"},
		{"code": 4, "label": "Critical"},
	})

	v.SetDefault("notify.smtp_host", "localhost")
	v.SetDefault("notify.smtp_port", 25)
	v.SetDefault("notify.subject", "Collector to Workforce Update")
	v.SetDefault("notify.display_zone", "America/New_York")
	v.SetDefault("notify.urgent_priority_floor", 2)

	v.SetDefault("digest.hour", 17)
	v.SetDefault("digest.lookback_hours", 24)

	v.SetDefault("runlog.driver", "sqlite")
	v.SetDefault("runlog.path", "workforce-bridge.db")

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

// Validate checks that the settings every command depends on are present.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return eris.New("config: source.url is required")
	}
	if c.Features.URL == "" {
		return eris.New("config: features.url is required")
	}
	if c.Dispatch.URL == "" {
		return eris.New("config: dispatch.url is required")
	}
	if len(c.Codes.AssignmentType) == 0 {
		return eris.New("config: codes.assignment_type must list at least one pair")
	}
	if c.Poll.IntervalMinutes <= 0 {
		return eris.New("config: poll.interval_minutes must be positive")
	}
	if c.Poll.LookbackMinutes < c.Poll.IntervalMinutes {
		return eris.New("config: poll.lookback_minutes must cover at least one interval")
	}
	return nil
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
