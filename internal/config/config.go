package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config holds all runreel configuration
type Config struct {
	HTTPAddress string `mapstructure:"http_address"`
	LogLevel    string `mapstructure:"log_level"`
	LogToFile   bool   `mapstructure:"log_to_file"`
	LogFilePath string `mapstructure:"log_file_path"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Backfill BackfillConfig `mapstructure:"backfill"`
	S3       S3Config       `mapstructure:"s3"`
	Gif      GifConfig      `mapstructure:"gif"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
}

type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	Schema   string `mapstructure:"schema"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
	TLS bool   `mapstructure:"tls"`
}

type QueueConfig struct {
	KeyPrefix    string        `mapstructure:"key_prefix"`
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

type WorkerConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	Embedded    bool `mapstructure:"embedded"`
}

type BackfillConfig struct {
	Schedule string        `mapstructure:"schedule"`
	Lookback time.Duration `mapstructure:"lookback"`
	Limit    int           `mapstructure:"limit"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	PublicDomain    string `mapstructure:"public_domain"`
	PrivateDomain   string `mapstructure:"private_domain"`
}

type GifConfig struct {
	BrowserWidth  int           `mapstructure:"browser_width"`
	BrowserHeight int           `mapstructure:"browser_height"`
	Scale         float64       `mapstructure:"scale"`
	FrameDelay    time.Duration `mapstructure:"frame_delay"`
	Quality       int           `mapstructure:"quality"`
}

type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
}

// envMappings binds config keys to their environment variables.
var envMappings = map[string]string{
	"http_address":  "HTTP_ADDRESS",
	"log_level":     "LOG_LEVEL",
	"log_to_file":   "LOG_TO_FILE",
	"log_file_path": "LOG_FILE_PATH",

	"database.url":       "DATABASE_URL",
	"database.schema":    "DATABASE_SCHEMA",
	"database.max_conns": "DATABASE_MAX_CONNS",

	"redis.url": "TASKS_REDIS_URL",
	"redis.tls": "REDIS_TLS",

	"queue.key_prefix":    "QUEUE_KEY_PREFIX",
	"queue.dedupe_window": "QUEUE_DEDUPE_WINDOW",
	"queue.poll_timeout":  "QUEUE_POLL_TIMEOUT",

	"worker.concurrency": "WORKER_CONCURRENCY",
	"worker.embedded":    "WORKER_EMBEDDED",

	"backfill.schedule": "BACKFILL_SCHEDULE",
	"backfill.lookback": "BACKFILL_LOOKBACK",
	"backfill.limit":    "BACKFILL_LIMIT",

	"s3.bucket":            "S3_BUCKET",
	"s3.region":            "S3_REGION",
	"s3.endpoint":          "S3_ENDPOINT",
	"s3.access_key_id":     "S3_ACCESS_KEY_ID",
	"s3.secret_access_key": "S3_SECRET_ACCESS_KEY",
	"s3.force_path_style":  "S3_FORCE_PATH_STYLE",
	"s3.public_domain":     "S3_PUBLIC_DOMAIN",
	"s3.private_domain":    "S3_PRIVATE_DOMAIN",

	"gif.browser_width":  "BROWSER_WIDTH",
	"gif.browser_height": "BROWSER_HEIGHT",
	"gif.scale":          "GIF_SCALE",
	"gif.frame_delay":    "GIF_FRAME_DELAY",
	"gif.quality":        "GIF_QUALITY",

	"fetch.timeout":         "FETCH_TIMEOUT",
	"fetch.concurrency":     "FETCH_CONCURRENCY",
	"fetch.max_image_bytes": "FETCH_MAX_IMAGE_BYTES",
}

type LoadParams struct {
	// ConfigFile overrides the config file search.
	ConfigFile string
	// EnvFile is loaded into the environment before reading it. Defaults to .env.
	EnvFile string
}

// Load reads configuration from defaults, an optional yaml file, a .env file and the environment,
// in increasing order of precedence.
func Load(params LoadParams) (*Config, error) {
	envFile := params.EnvFile
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error reading env file: %w", err)
		}
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s for %s", envVar, configKey)
		}
	}

	if params.ConfigFile != "" {
		v.SetConfigFile(params.ConfigFile)
	} else {
		v.SetConfigName("runreel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.runreel")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}

		log.Debug().Msg("Config file not found, using environment variables and defaults")
	} else {
		log.Info().Msgf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_address", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_to_file", false)
	v.SetDefault("log_file_path", "logs/runreel-logs.jsonl")

	v.SetDefault("database.schema", "browserable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.url", "redis://localhost:6379/2")
	v.SetDefault("redis.tls", false)

	v.SetDefault("queue.key_prefix", "runreel")
	v.SetDefault("queue.dedupe_window", 0)
	v.SetDefault("queue.poll_timeout", 5*time.Second)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.embedded", false)

	v.SetDefault("backfill.schedule", "")
	v.SetDefault("backfill.lookback", 24*time.Hour)
	v.SetDefault("backfill.limit", 100)

	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.force_path_style", false)

	v.SetDefault("gif.browser_width", 800)
	v.SetDefault("gif.browser_height", 600)
	v.SetDefault("gif.scale", 0.8)
	v.SetDefault("gif.frame_delay", time.Second)
	v.SetDefault("gif.quality", 10)

	v.SetDefault("fetch.timeout", 60*time.Second)
	v.SetDefault("fetch.concurrency", 0)
	v.SetDefault("fetch.max_image_bytes", 20<<20)
}

type Requirement string

const (
	RequireDatabase Requirement = "database"
	RequireRedis    Requirement = "redis"
	RequireStorage  Requirement = "storage"
)

// Validate checks the settings needed by the given requirements.
func (c *Config) Validate(requirements ...Requirement) error {
	var missingVars []string

	for _, requirement := range requirements {
		switch requirement {
		case RequireDatabase:
			if c.Database.URL == "" {
				missingVars = append(missingVars, "DATABASE_URL")
			}
		case RequireRedis:
			if c.Redis.URL == "" {
				missingVars = append(missingVars, "TASKS_REDIS_URL")
			}
		case RequireStorage:
			if c.S3.Bucket == "" {
				missingVars = append(missingVars, "S3_BUCKET")
			}
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}

	if c.Gif.BrowserWidth <= 0 || c.Gif.BrowserHeight <= 0 || c.Gif.Scale <= 0 {
		return fmt.Errorf("invalid gif canvas: %dx%d scaled by %v", c.Gif.BrowserWidth, c.Gif.BrowserHeight, c.Gif.Scale)
	}

	return nil
}
