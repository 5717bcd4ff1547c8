package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	ServerPort int
	PublicURL  string
	LogLevel   string

	// Система учёта результатов. Пустой адрес означает пересылку через
	// authoring-канал планировщика.
	PlannerURL         string
	ForwardTimeout     time.Duration
	MaxForwardAttempts int

	// Журнал окончательно не доставленных результатов. Пустой DSN: в памяти.
	DatabaseURL string

	StateDir          string
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2Prefix          string
	ResumableFor      time.Duration
	MaxStateAge       time.Duration

	AllowedOrigins []string

	DrainInterval        time.Duration
	StaleCleanupInterval time.Duration
	CacheSweepInterval   time.Duration
}

// fileConfig is the YAML layout. Durations are strings such as "30s".
type fileConfig struct {
	Server struct {
		Port           int      `yaml:"port"`
		PublicURL      string   `yaml:"public_url"`
		LogLevel       string   `yaml:"log_level"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Forwarding struct {
		PlannerURL  string `yaml:"planner_url"`
		Timeout     string `yaml:"timeout"`
		MaxAttempts int    `yaml:"max_attempts"`
		DatabaseURL string `yaml:"database_url"`
	} `yaml:"forwarding"`
	MatchState struct {
		Dir          string `yaml:"dir"`
		ResumableFor string `yaml:"resumable_for"`
		MaxAge       string `yaml:"max_age"`
		R2           struct {
			AccountID       string `yaml:"account_id"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			BucketName      string `yaml:"bucket_name"`
			Prefix          string `yaml:"prefix"`
		} `yaml:"r2"`
	} `yaml:"match_state"`
	Schedule struct {
		Drain        string `yaml:"drain"`
		StaleCleanup string `yaml:"stale_cleanup"`
		CacheSweep   string `yaml:"cache_sweep"`
	} `yaml:"schedule"`
}

func Default() *Config {
	return &Config{
		ServerPort:           8080,
		LogLevel:             "info",
		ForwardTimeout:       5 * time.Second,
		MaxForwardAttempts:   3,
		StateDir:             "data/match-state",
		ResumableFor:         24 * time.Hour,
		MaxStateAge:          7 * 24 * time.Hour,
		DrainInterval:        30 * time.Second,
		StaleCleanupInterval: time.Minute,
		CacheSweepInterval:   10 * time.Minute,
	}
}

// Load собирает конфигурацию слоями: значения по умолчанию, YAML-файл
// (--config или HUB_CONFIG), переменные окружения (в том числе из .env),
// затем флаги командной строки. Каждый следующий слой перекрывает предыдущий.
// При --help возвращает pflag.ErrHelp.
func Load(args []string) (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	// Первый проход нужен только чтобы узнать путь к файлу.
	configPath := os.Getenv("HUB_CONFIG")
	probe := newFlagSet(Default(), &configPath)
	probe.SetOutput(io.Discard)
	// Ошибки разбора сообщит второй проход.
	_ = probe.Parse(args)

	cfg := Default()
	if configPath != "" {
		if err := cfg.loadFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	flags := newFlagSet(cfg, &configPath)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if cfg.PublicURL == "" {
		cfg.PublicURL = fmt.Sprintf("http://localhost:%d", cfg.ServerPort)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newFlagSet(cfg *Config, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tournament-hub", pflag.ContinueOnError)
	fs.StringVar(configPath, "config", *configPath, "path to a YAML config file (env HUB_CONFIG)")
	fs.IntVar(&cfg.ServerPort, "port", cfg.ServerPort, "HTTP listen port (env SERVER_PORT)")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "externally visible base URL used in registration endpoints (env HUB_PUBLIC_URL)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&cfg.PlannerURL, "planner-url", cfg.PlannerURL, "base URL of the system of record (env PLANNER_URL)")
	fs.DurationVar(&cfg.ForwardTimeout, "forward-timeout", cfg.ForwardTimeout, "timeout of one forwarding attempt (env FORWARD_TIMEOUT)")
	fs.IntVar(&cfg.MaxForwardAttempts, "forward-max-attempts", cfg.MaxForwardAttempts, "forwarding attempts before a result is given up (env FORWARD_MAX_ATTEMPTS)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Postgres DSN for the forward failure log (env DATABASE_URL)")
	fs.StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory of the durable match-state tier (env STATE_DIR)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "allowed CORS and websocket origins (env ALLOWED_ORIGINS)")
	fs.DurationVar(&cfg.DrainInterval, "drain-interval", cfg.DrainInterval, "forward queue drain interval (env DRAIN_INTERVAL)")
	fs.DurationVar(&cfg.StaleCleanupInterval, "stale-cleanup-interval", cfg.StaleCleanupInterval, "stale tournament cleanup interval (env STALE_CLEANUP_INTERVAL)")
	fs.DurationVar(&cfg.CacheSweepInterval, "cache-sweep-interval", cfg.CacheSweepInterval, "match-state sweep interval (env CACHE_SWEEP_INTERVAL)")
	return fs
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setInt(&c.ServerPort, fc.Server.Port)
	setString(&c.PublicURL, fc.Server.PublicURL)
	setString(&c.LogLevel, fc.Server.LogLevel)
	if len(fc.Server.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.Server.AllowedOrigins
	}
	setString(&c.PlannerURL, fc.Forwarding.PlannerURL)
	setInt(&c.MaxForwardAttempts, fc.Forwarding.MaxAttempts)
	setString(&c.DatabaseURL, fc.Forwarding.DatabaseURL)
	setString(&c.StateDir, fc.MatchState.Dir)
	setString(&c.R2AccountID, fc.MatchState.R2.AccountID)
	setString(&c.R2AccessKeyID, fc.MatchState.R2.AccessKeyID)
	setString(&c.R2SecretAccessKey, fc.MatchState.R2.SecretAccessKey)
	setString(&c.R2BucketName, fc.MatchState.R2.BucketName)
	setString(&c.R2Prefix, fc.MatchState.R2.Prefix)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"forwarding.timeout", fc.Forwarding.Timeout, &c.ForwardTimeout},
		{"match_state.resumable_for", fc.MatchState.ResumableFor, &c.ResumableFor},
		{"match_state.max_age", fc.MatchState.MaxAge, &c.MaxStateAge},
		{"schedule.drain", fc.Schedule.Drain, &c.DrainInterval},
		{"schedule.stale_cleanup", fc.Schedule.StaleCleanup, &c.StaleCleanupInterval},
		{"schedule.cache_sweep", fc.Schedule.CacheSweep, &c.CacheSweepInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.PublicURL, os.Getenv("HUB_PUBLIC_URL"))
	setString(&c.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&c.PlannerURL, os.Getenv("PLANNER_URL"))
	setString(&c.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&c.StateDir, os.Getenv("STATE_DIR"))
	setString(&c.R2AccountID, os.Getenv("R2_ACCOUNT_ID"))
	setString(&c.R2AccessKeyID, os.Getenv("R2_ACCESS_KEY_ID"))
	setString(&c.R2SecretAccessKey, os.Getenv("R2_SECRET_ACCESS_KEY"))
	setString(&c.R2BucketName, os.Getenv("R2_BUCKET_NAME"))
	setString(&c.R2Prefix, os.Getenv("R2_PREFIX"))

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"SERVER_PORT", &c.ServerPort},
		{"FORWARD_MAX_ATTEMPTS", &c.MaxForwardAttempts},
	}
	for _, i := range ints {
		raw := os.Getenv(i.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", i.name, err)
		}
		*i.dst = v
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"FORWARD_TIMEOUT", &c.ForwardTimeout},
		{"MATCH_STATE_RESUMABLE_FOR", &c.ResumableFor},
		{"MATCH_STATE_MAX_AGE", &c.MaxStateAge},
		{"DRAIN_INTERVAL", &c.DrainInterval},
		{"STALE_CLEANUP_INTERVAL", &c.StaleCleanupInterval},
		{"CACHE_SWEEP_INTERVAL", &c.CacheSweepInterval},
	}
	for _, d := range durations {
		raw := os.Getenv(d.name)
		if raw == "" {
			continue
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid %s environment variable: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.MaxForwardAttempts < 1 {
		return fmt.Errorf("FORWARD_MAX_ATTEMPTS must be at least 1, got %d", c.MaxForwardAttempts)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	positive := map[string]time.Duration{
		"FORWARD_TIMEOUT":           c.ForwardTimeout,
		"MATCH_STATE_RESUMABLE_FOR": c.ResumableFor,
		"MATCH_STATE_MAX_AGE":       c.MaxStateAge,
		"DRAIN_INTERVAL":            c.DrainInterval,
		"STALE_CLEANUP_INTERVAL":    c.StaleCleanupInterval,
		"CACHE_SWEEP_INTERVAL":      c.CacheSweepInterval,
	}
	for name, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.ResumableFor > c.MaxStateAge {
		return fmt.Errorf("MATCH_STATE_RESUMABLE_FOR (%s) must not exceed MATCH_STATE_MAX_AGE (%s)", c.ResumableFor, c.MaxStateAge)
	}

	// R2 включается только целиком: частичная настройка почти наверняка опечатка.
	r2 := []string{c.R2AccountID, c.R2AccessKeyID, c.R2SecretAccessKey, c.R2BucketName}
	set := 0
	for _, v := range r2 {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(r2) {
		return fmt.Errorf("R2_ACCOUNT_ID, R2_ACCESS_KEY_ID, R2_SECRET_ACCESS_KEY and R2_BUCKET_NAME must be set together")
	}
	return nil
}

// R2Enabled reports whether the durable match-state tier lives in R2
// instead of the local state directory.
func (c *Config) R2Enabled() bool {
	return c.R2BucketName != ""
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
