// Package config loads the agent's YAML configuration with environment
// variable overrides for secrets and deploy-time settings.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jyouterean/kei-cargo-impression-agent/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	Platforms PlatformsConfig `yaml:"platforms"`
	Harvest   HarvestConfig   `yaml:"harvest"`
	Mining    MiningConfig    `yaml:"mining"`
	Bandit    BanditConfig    `yaml:"bandit"`
	Learning  LearningConfig  `yaml:"learning"`
	Policy    PolicyConfig    `yaml:"policy"`
	Worker    WorkerConfig    `yaml:"worker"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Radar     RadarConfig     `yaml:"radar"`
	Timezone  string          `yaml:"timezone"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection string.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the Redis connection. The guard keeps all of its
// state there; the worker's distributed lock falls back to Postgres
// advisory locks when Redis is unreachable.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// BedrockConfig holds the LLM settings.
type BedrockConfig struct {
	ModelID string `yaml:"model_id"`
	Region  string `yaml:"region"`
	Enabled bool   `yaml:"enabled"`
}

// PlatformsConfig holds per-platform credentials and limits.
type PlatformsConfig struct {
	X       XConfig       `yaml:"x"`
	Threads ThreadsConfig `yaml:"threads"`
}

// XConfig holds X API v2 settings.
type XConfig struct {
	BearerToken string `yaml:"bearer_token"`
	HourlyLimit int    `yaml:"hourly_limit"`
	Enabled     bool   `yaml:"enabled"`
}

// ThreadsConfig holds Threads Graph API settings.
type ThreadsConfig struct {
	AccessToken string `yaml:"access_token"`
	UserID      string `yaml:"user_id"`
	HourlyLimit int    `yaml:"hourly_limit"`
	Enabled     bool   `yaml:"enabled"`
}

// HarvestConfig holds the search harvesting settings.
type HarvestConfig struct {
	Queries  []string `yaml:"queries"`
	PerQuery int      `yaml:"per_query"`
	Language string   `yaml:"language"`
}

// MiningConfig holds pattern-mining settings.
type MiningConfig struct {
	BatchSize    int     `yaml:"batch_size"`
	DelayMs      int     `yaml:"delay_ms"`
	MinBuzz      float64 `yaml:"min_buzz"`
	WindowDays   int     `yaml:"window_days"`
	MaxPerRun    int     `yaml:"max_per_run"`
}

// Delay returns the inter-call delay as a duration.
func (c MiningConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// BanditConfig holds the candidate value lists and reward shaping.
type BanditConfig struct {
	Formats       []string `yaml:"formats"`
	HookTypes     []string `yaml:"hook_types"`
	PayloadTypes  []string `yaml:"payload_types"`
	Topics        []string `yaml:"topics"`
	RewardDivisor float64  `yaml:"reward_divisor"`
}

// LearningConfig holds the reward feedback job settings.
type LearningConfig struct {
	LookbackHours int `yaml:"lookback_hours"`
}

// Lookback returns the scan window as a duration.
func (c LearningConfig) Lookback() time.Duration {
	return time.Duration(c.LookbackHours) * time.Hour
}

// PolicyConfig holds draft review settings.
type PolicyConfig struct {
	NGExpressions []string `yaml:"ng_expressions"`
	MaxPerDay     int      `yaml:"max_per_day"`
	MinRunes      int      `yaml:"min_runes"`
}

// WorkerConfig holds the pipeline worker settings.
type WorkerConfig struct {
	IntervalSeconds int  `yaml:"interval_seconds"`
	Enabled         bool `yaml:"enabled"`
}

// Interval returns the tick interval as a duration.
func (c WorkerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// SnapshotConfig holds the S3 state snapshot settings.
type SnapshotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	S3Bucket string `yaml:"s3_bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
}

// RadarConfig maps topics to the RSS/Atom feeds the generator watches.
type RadarConfig struct {
	Feeds map[string][]string `yaml:"feeds"`
}

// EnabledPlatforms returns the platforms with credentials configured.
func (c *Config) EnabledPlatforms() []domain.Platform {
	var out []domain.Platform
	if c.Platforms.X.Enabled {
		out = append(out, domain.PlatformX)
	}
	if c.Platforms.Threads.Enabled {
		out = append(out, domain.PlatformThreads)
	}
	return out
}

// HourlyLimits returns the per-platform publish rate limits for the guard.
func (c *Config) HourlyLimits() map[domain.Platform]int {
	return map[domain.Platform]int{
		domain.PlatformX:       c.Platforms.X.HourlyLimit,
		domain.PlatformThreads: c.Platforms.Threads.HourlyLimit,
	}
}

// Location resolves the configured timezone, UTC on failure.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Harvest.PerQuery == 0 {
		cfg.Harvest.PerQuery = 50
	}
	if cfg.Harvest.Language == "" {
		cfg.Harvest.Language = "en"
	}
	if len(cfg.Harvest.Queries) == 0 {
		cfg.Harvest.Queries = []string{"kei truck", "kei van", "van life"}
	}
	if cfg.Mining.BatchSize == 0 {
		cfg.Mining.BatchSize = 50
	}
	if cfg.Mining.DelayMs == 0 {
		cfg.Mining.DelayMs = 500
	}
	if cfg.Mining.MinBuzz == 0 {
		cfg.Mining.MinBuzz = 0.5
	}
	if cfg.Mining.WindowDays == 0 {
		cfg.Mining.WindowDays = 7
	}
	if cfg.Mining.MaxPerRun == 0 {
		cfg.Mining.MaxPerRun = 100
	}
	if len(cfg.Bandit.Formats) == 0 {
		cfg.Bandit.Formats = []string{"listicle", "question", "statement", "story", "howto", "hot_take"}
	}
	if len(cfg.Bandit.HookTypes) == 0 {
		cfg.Bandit.HookTypes = []string{"curiosity", "contrarian", "empathy", "urgency", "authority", "humor"}
	}
	if len(cfg.Bandit.PayloadTypes) == 0 {
		cfg.Bandit.PayloadTypes = []string{"tip", "insight", "news", "opinion", "resource"}
	}
	if len(cfg.Bandit.Topics) == 0 {
		cfg.Bandit.Topics = []string{"kei_trucks", "van_life", "offroad", "maintenance", "imports"}
	}
	if cfg.Bandit.RewardDivisor == 0 {
		cfg.Bandit.RewardDivisor = 10
	}
	if cfg.Learning.LookbackHours == 0 {
		cfg.Learning.LookbackHours = 48
	}
	if cfg.Policy.MaxPerDay == 0 {
		cfg.Policy.MaxPerDay = 8
	}
	if cfg.Policy.MinRunes == 0 {
		cfg.Policy.MinRunes = 20
	}
	if cfg.Worker.IntervalSeconds == 0 {
		cfg.Worker.IntervalSeconds = 3600
	}
	if cfg.Platforms.X.HourlyLimit == 0 {
		cfg.Platforms.X.HourlyLimit = 2
	}
	if cfg.Platforms.Threads.HourlyLimit == 0 {
		cfg.Platforms.Threads.HourlyLimit = 2
	}
	if cfg.Bedrock.ModelID == "" {
		cfg.Bedrock.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Snapshot.Prefix == "" {
		cfg.Snapshot.Prefix = "impression-agent/state/"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file first (if present) so secrets can live in .env
// locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("X_BEARER_TOKEN"); v != "" {
		cfg.Platforms.X.BearerToken = v
		cfg.Platforms.X.Enabled = true
	}
	if v := os.Getenv("THREADS_ACCESS_TOKEN"); v != "" {
		cfg.Platforms.Threads.AccessToken = v
		cfg.Platforms.Threads.Enabled = true
	}
	if v := os.Getenv("THREADS_USER_ID"); v != "" {
		cfg.Platforms.Threads.UserID = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("SNAPSHOT_S3_BUCKET"); v != "" {
		cfg.Snapshot.S3Bucket = v
		cfg.Snapshot.Enabled = true
	}

	return cfg, nil
}
