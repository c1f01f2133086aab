package speechgate

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	ListenAddr     string           `yaml:"listen_addr"`
	AudioDumpPath  string           `yaml:"audio_dump_path"`
	MaxUploadBytes int64            `yaml:"max_upload_bytes"`
	AdminToken     string           `yaml:"admin_token"`
	Dictionary     DictionaryConfig `yaml:"dictionary"`
	Quota          QuotaConfig      `yaml:"quota"`
	Ledger         LedgerConfig     `yaml:"ledger"`
	Charge         ChargeConfig     `yaml:"charge"`
	Cloud          EngineConfig     `yaml:"cloud"`
	Local          EngineConfig     `yaml:"local"`
	Metrics        MetricsConfig    `yaml:"metrics"`
	Log            LogConfig        `yaml:"log"`
}

// DictionaryConfig locates the trigger-word list.
type DictionaryConfig struct {
	Path   string `yaml:"path"`
	Suffix string `yaml:"suffix"`
}

// QuotaConfig configures the ledger policy.
type QuotaConfig struct {
	ThresholdSeconds float64     `yaml:"threshold_seconds"`
	MinChargeSeconds float64     `yaml:"min_charge_seconds"`
	MinConfidence    float64     `yaml:"min_confidence"`
	Granularity      Granularity `yaml:"granularity"`
	Rollover         Rollover    `yaml:"rollover"`
	TimeZone         string      `yaml:"time_zone"`
	Policy           string      `yaml:"policy"` // quota_first, local, cloud
}

// LedgerConfig selects and configures the durable ledger store.
type LedgerConfig struct {
	Driver                string         `yaml:"driver"` // file, redis, postgres, memory
	Path                  string         `yaml:"path"`
	CreateIfMissing       bool           `yaml:"create_if_missing"`
	FatalOnPersistFailure bool           `yaml:"fatal_on_persist_failure"`
	Redis                 RedisConfig    `yaml:"redis"`
	Postgres              PostgresConfig `yaml:"postgres"`
}

// RedisConfig configures the redis ledger store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// PostgresConfig configures the postgres ledger store.
type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	TablePrefix string `yaml:"table_prefix"`
}

// ChargeConfig configures the asynchronous charger.
type ChargeConfig struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	Timeout   time.Duration `yaml:"timeout"`
}

// EngineConfig configures one speech engine.
type EngineConfig struct {
	Engine          string        `yaml:"engine"`
	APIKey          string        `yaml:"api_key"`
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	Binary          string        `yaml:"binary"`
	ModelPath       string        `yaml:"model_path"`
	Language        string        `yaml:"language"`
	MaxAlternatives int           `yaml:"max_alternatives"`
	Timeout         time.Duration `yaml:"timeout"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads and parses a YAML config file.
// Environment variables in the format ${VAR} are expanded before parsing.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("speechgate: read config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML config bytes, applies defaults and validates.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("speechgate: parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":5000"
	}
	if c.AudioDumpPath == "" {
		c.AudioDumpPath = os.TempDir()
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.Dictionary.Suffix == "" {
		c.Dictionary.Suffix = "me"
	}
	if c.Quota.ThresholdSeconds == 0 {
		c.Quota.ThresholdSeconds = DefaultThresholdSeconds
	}
	if c.Quota.MinChargeSeconds == 0 {
		c.Quota.MinChargeSeconds = DefaultMinChargeSeconds
	}
	if c.Quota.MinConfidence == 0 {
		c.Quota.MinConfidence = DefaultMinConfidence
	}
	if c.Quota.Granularity == "" {
		c.Quota.Granularity = GranularityDay
	}
	if c.Quota.Rollover == "" {
		c.Quota.Rollover = RolloverZero
	}
	if c.Quota.TimeZone == "" {
		c.Quota.TimeZone = DefaultTimeZone
	}
	if c.Quota.Policy == "" {
		c.Quota.Policy = "quota_first"
	}
	if c.Ledger.Driver == "" {
		c.Ledger.Driver = "file"
	}
	if c.Ledger.Path == "" {
		c.Ledger.Path = "data/data.json"
	}
	if c.Ledger.Redis.Key == "" {
		c.Ledger.Redis.Key = "speechgate:ledger"
	}
	if c.Ledger.Postgres.TablePrefix == "" {
		c.Ledger.Postgres.TablePrefix = "speechgate_"
	}
	if c.Charge.Workers == 0 {
		c.Charge.Workers = defaultChargeWorkers
	}
	if c.Charge.QueueSize == 0 {
		c.Charge.QueueSize = defaultChargeQueue
	}
	if c.Charge.Timeout == 0 {
		c.Charge.Timeout = defaultChargeTimeout
	}
	if c.Cloud.Engine == "" {
		c.Cloud.Engine = "googlespeech"
	}
	if c.Cloud.Language == "" {
		c.Cloud.Language = DefaultCloudLanguage
	}
	if c.Cloud.MaxAlternatives == 0 {
		c.Cloud.MaxAlternatives = DefaultMaxAlternatives
	}
	if c.Cloud.Timeout == 0 {
		c.Cloud.Timeout = defaultEngineTimeout
	}
	if c.Local.Engine == "" {
		c.Local.Engine = "whispercli"
	}
	if c.Local.Language == "" {
		c.Local.Language = DefaultLocalLanguage
	}
	if c.Local.Timeout == 0 {
		c.Local.Timeout = 2 * defaultEngineTimeout
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the config for required fields and consistency.
func (c Config) Validate() error {
	if c.Dictionary.Path == "" {
		return fmt.Errorf("speechgate: config: dictionary.path is required")
	}
	if c.Quota.ThresholdSeconds < 0 {
		return fmt.Errorf("speechgate: config: quota.threshold_seconds must not be negative")
	}
	if c.Quota.MinChargeSeconds < 0 {
		return fmt.Errorf("speechgate: config: quota.min_charge_seconds must not be negative")
	}
	if c.Quota.MinConfidence < 0 || c.Quota.MinConfidence > 1 {
		return fmt.Errorf("speechgate: config: quota.min_confidence must be within [0, 1]")
	}
	if err := (Period{Granularity: c.Quota.Granularity, Rollover: c.Quota.Rollover}).Validate(); err != nil {
		return fmt.Errorf("speechgate: config: quota: %w", err)
	}
	if _, err := time.LoadLocation(c.Quota.TimeZone); err != nil {
		return fmt.Errorf("speechgate: config: quota.time_zone %q: %w", c.Quota.TimeZone, err)
	}
	switch c.Quota.Policy {
	case "quota_first", "local", "cloud":
	default:
		return fmt.Errorf("speechgate: config: invalid quota.policy %q", c.Quota.Policy)
	}

	switch c.Ledger.Driver {
	case "file", "memory":
	case "redis":
		if c.Ledger.Redis.Addr == "" {
			return fmt.Errorf("speechgate: config: ledger.redis.addr is required")
		}
	case "postgres":
		if c.Ledger.Postgres.DSN == "" {
			return fmt.Errorf("speechgate: config: ledger.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("speechgate: config: invalid ledger.driver %q", c.Ledger.Driver)
	}

	if c.Charge.Workers < 0 || c.Charge.QueueSize < 0 {
		return fmt.Errorf("speechgate: config: charge.workers and charge.queue_size must not be negative")
	}

	switch c.Cloud.Engine {
	case "googlespeech":
		if c.Cloud.APIKey == "" && c.Quota.Policy != "local" {
			return fmt.Errorf("speechgate: config: cloud.api_key is required for googlespeech")
		}
	case "mock":
	default:
		return fmt.Errorf("speechgate: config: invalid cloud.engine %q", c.Cloud.Engine)
	}

	switch c.Local.Engine {
	case "whispercli":
		if c.Local.ModelPath == "" {
			return fmt.Errorf("speechgate: config: local.model_path is required for whispercli")
		}
	case "openaicompat":
		if c.Local.BaseURL == "" {
			return fmt.Errorf("speechgate: config: local.base_url is required for openaicompat")
		}
	case "mock":
	default:
		return fmt.Errorf("speechgate: config: invalid local.engine %q", c.Local.Engine)
	}

	return nil
}

// Period builds the accounting period from the quota section.
func (q QuotaConfig) Period() (Period, error) {
	loc, err := time.LoadLocation(q.TimeZone)
	if err != nil {
		return Period{}, fmt.Errorf("speechgate: load time zone %q: %w", q.TimeZone, err)
	}
	return Period{Granularity: q.Granularity, Rollover: q.Rollover, Location: loc}, nil
}
