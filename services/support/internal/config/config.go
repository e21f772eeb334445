package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file, overridable with SUPPORT_CONFIG.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := strings.TrimSpace(os.Getenv("SUPPORT_CONFIG")); v != "" {
		return v
	}
	return "config.yaml"
}

// MemoryDatabaseURL selects the in-process store instead of a SQL database.
const MemoryDatabaseURL = "memory"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                       string   `yaml:"port"`
	LogLevel                   string   `yaml:"logLevel"`
	DatabaseURL                string   `yaml:"databaseURL"`
	RedisAddr                  string   `yaml:"redisAddr"`
	RedisPassword              string   `yaml:"redisPassword"`
	JWTSecret                  string   `yaml:"jwtSecret"`
	JWTIssuer                  string   `yaml:"jwtIssuer"`
	JWTAudience                string   `yaml:"jwtAudience"`
	SessionTTL                 string   `yaml:"sessionTTL"`
	AIProvider                 string   `yaml:"aiProvider"`
	AIBaseURL                  string   `yaml:"aiBaseURL"`
	AIAPIKey                   string   `yaml:"aiAPIKey"`
	AIModel                    string   `yaml:"aiModel"`
	AIReferer                  string   `yaml:"aiReferer"`
	AITitle                    string   `yaml:"aiTitle"`
	ChatTimeout                string   `yaml:"chatTimeout"`
	FAQCacheTTL                string   `yaml:"faqCacheTTL"`
	LegacyStatusUpdates        bool     `yaml:"legacyStatusUpdates"`
	SeedDemoData               bool     `yaml:"seedDemoData"`
	BootstrapAdminEmail        string   `yaml:"bootstrapAdminEmail"`
	BootstrapAdminPassword     string   `yaml:"bootstrapAdminPassword"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	CORSAllowedOrigins         []string `yaml:"corsAllowedOrigins"`
	EventStream                string   `yaml:"eventStream"`
	EventConsumer              bool     `yaml:"eventConsumer"`
}

// Defaults applied when a key is absent.
const (
	DefaultSessionTTL  = 8 * time.Hour
	DefaultChatTimeout = 30 * time.Second
	DefaultFAQCacheTTL = 5 * time.Minute
	DefaultAIModel     = "deepseek/deepseek-chat"
	DefaultEventStream = "support:events"
)

// Load reads config from path (defaults to ConfigPath). A .env file next to
// the config supplies values for environment variables that are not set.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	dotenv, err := readDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg, func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return dotenv[key]
	})
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	return values, nil
}

func applyEnv(cfg *FileConfig, getenv func(string) string) {
	setString := func(target *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(getenv(key)); v != "" {
				*target = v
				return
			}
		}
	}
	setInt := func(target *int, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*target = n
			}
		}
	}
	setBool := func(target *bool, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*target = b
			}
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.JWTSecret, "JWT_SECRET_KEY")
	setString(&cfg.AIProvider, "AI_PROVIDER")
	setString(&cfg.AIAPIKey, "AI_API_KEY", "OPENROUTER_API_KEY")
	setString(&cfg.AIBaseURL, "AI_BASE_URL")
	setString(&cfg.AIModel, "AI_MODEL")
	setString(&cfg.BootstrapAdminEmail, "SUPPORT_BOOTSTRAP_ADMIN_EMAIL")
	setString(&cfg.BootstrapAdminPassword, "SUPPORT_BOOTSTRAP_ADMIN_PASSWORD")
	setBool(&cfg.LegacyStatusUpdates, "SUPPORT_LEGACY_STATUS_UPDATES")
	setBool(&cfg.SeedDemoData, "SUPPORT_SEED_DEMO_DATA")
	setInt(&cfg.LoginRateLimitPerMinute, "SUPPORT_LOGIN_RATE_LIMIT_PER_MINUTE")
	setInt(&cfg.RegisterRateLimitPerMinute, "SUPPORT_REGISTER_RATE_LIMIT_PER_MINUTE")
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AIModel == "" {
		cfg.AIModel = DefaultAIModel
	}
	if cfg.AIProvider == "" {
		if cfg.AIAPIKey != "" {
			cfg.AIProvider = "openrouter"
		} else {
			cfg.AIProvider = "none"
		}
	}
	if cfg.EventStream == "" {
		cfg.EventStream = DefaultEventStream
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL or use \"memory\")")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET_KEY)")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.BootstrapAdminEmail == "") != (cfg.BootstrapAdminPassword == "") {
		return errors.New("config: bootstrapAdminEmail and bootstrapAdminPassword must be set together")
	}
	if cfg.EventConsumer && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: eventConsumer requires redisAddr")
	}
	for name, raw := range map[string]string{
		"sessionTTL":  cfg.SessionTTL,
		"chatTimeout": cfg.ChatTimeout,
		"faqCacheTTL": cfg.FAQCacheTTL,
	} {
		if _, err := ParseDuration(name, raw, 0); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration, returning def when raw is empty.
func ParseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must not be negative", name)
	}
	return dur, nil
}

// Durations holds the parsed duration settings.
type Durations struct {
	SessionTTL  time.Duration
	ChatTimeout time.Duration
	FAQCacheTTL time.Duration
}

// ParseDurations parses every duration key, applying defaults.
func (c FileConfig) ParseDurations() (Durations, error) {
	var d Durations
	var err error
	if d.SessionTTL, err = ParseDuration("sessionTTL", c.SessionTTL, DefaultSessionTTL); err != nil {
		return d, err
	}
	if d.ChatTimeout, err = ParseDuration("chatTimeout", c.ChatTimeout, DefaultChatTimeout); err != nil {
		return d, err
	}
	if d.FAQCacheTTL, err = ParseDuration("faqCacheTTL", c.FAQCacheTTL, DefaultFAQCacheTTL); err != nil {
		return d, err
	}
	return d, nil
}
