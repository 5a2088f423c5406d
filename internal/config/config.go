// Package config loads and validates serpflow configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Database DatabaseConfig `mapstructure:"database"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Sampler  SamplerConfig  `mapstructure:"sampler"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	TrustProxy     bool     `mapstructure:"trust_proxy"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// AuthConfig defines worker authentication toggles.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	WorkerKey string `mapstructure:"worker_key"`
}

// DispatchConfig governs what a claim hands to a worker.
type DispatchConfig struct {
	MaxPages int `mapstructure:"max_pages"`
}

// DatabaseConfig controls access to PostgreSQL. An empty host (and no
// DSN override) selects the in-memory store for local development.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ArchiveConfig selects the raw SERP snapshot backend.
type ArchiveConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	LocalDir    string `mapstructure:"local_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for completion notifications. Empty
// project/topic selects the in-memory notifier.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// SamplerConfig schedules the queue-depth metrics refresh.
type SamplerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// AgentConfig drives the reference polling worker.
type AgentConfig struct {
	ServerURL         string         `mapstructure:"server_url"`
	WorkerKey         string         `mapstructure:"worker_key"`
	PollSeconds       int            `mapstructure:"poll_seconds"`
	SearchURL         string         `mapstructure:"search_url"`
	UserAgent         string         `mapstructure:"user_agent"`
	TimeoutSeconds    int            `mapstructure:"timeout_seconds"`
	Headless          bool           `mapstructure:"headless"`
	NavTimeoutSeconds int            `mapstructure:"nav_timeout_seconds"`
	Selectors         SelectorConfig `mapstructure:"selectors"`
}

// SelectorConfig holds the CSS selectors the agent parses SERPs with.
// Defaults target the DuckDuckGo HTML endpoint.
type SelectorConfig struct {
	Result  string `mapstructure:"result"`
	Title   string `mapstructure:"title"`
	Snippet string `mapstructure:"snippet"`
	Related string `mapstructure:"related"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SERPFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key needs a default so AutomaticEnv overrides survive Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.timeout_seconds", 60)
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.worker_key", "")
	v.SetDefault("dispatch.max_pages", 5)
	v.SetDefault("database.host", "")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "serpflow")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.backend", "memory")
	v.SetDefault("archive.gcs_bucket", "")
	v.SetDefault("archive.local_dir", "")
	v.SetDefault("archive.prefix", "serps")
	v.SetDefault("archive.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("sampler.enabled", true)
	v.SetDefault("sampler.spec", "@every 30s")
	v.SetDefault("logging.development", true)
	v.SetDefault("agent.server_url", "http://localhost:8080")
	v.SetDefault("agent.worker_key", "")
	v.SetDefault("agent.poll_seconds", 5)
	v.SetDefault("agent.search_url", "https://html.duckduckgo.com/html/?q=%s")
	v.SetDefault("agent.user_agent", "serpflow-agent/0.1")
	v.SetDefault("agent.timeout_seconds", 20)
	v.SetDefault("agent.headless", false)
	v.SetDefault("agent.nav_timeout_seconds", 25)
	v.SetDefault("agent.selectors.result", ".result")
	v.SetDefault("agent.selectors.title", "a.result__a")
	v.SetDefault("agent.selectors.snippet", "a.result__snippet")
	v.SetDefault("agent.selectors.related", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be > 0")
	}
	if c.Dispatch.MaxPages <= 0 {
		return fmt.Errorf("dispatch.max_pages must be > 0")
	}
	if c.Auth.Enabled && c.Auth.WorkerKey == "" {
		return fmt.Errorf("auth.worker_key must be set when worker auth is enabled")
	}
	if c.Archive.Enabled {
		switch c.Archive.Backend {
		case "memory":
		case "local":
			if c.Archive.LocalDir == "" {
				return fmt.Errorf("archive.local_dir must be set for the local backend")
			}
		case "gcs":
			if c.Archive.GCSBucket == "" {
				return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("archive.backend must be one of memory, local, gcs")
		}
	}
	if c.Sampler.Enabled && c.Sampler.Spec == "" {
		return fmt.Errorf("sampler.spec must be set when the sampler is enabled")
	}
	if c.Agent.PollSeconds <= 0 {
		return fmt.Errorf("agent.poll_seconds must be > 0")
	}
	return nil
}

// RequestTimeout converts the server timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// ConnString assembles a pgx connection string, preferring an explicit
// DSN override.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}
