package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hetulpatel/sportsarb/internal/canonical"
	"github.com/hetulpatel/sportsarb/internal/kalshi"
	"github.com/hetulpatel/sportsarb/internal/logging"
	"github.com/hetulpatel/sportsarb/internal/polymarket"
	"github.com/hetulpatel/sportsarb/internal/snapshot"
)

// Config is the scanner configuration (config.yaml, env, flags).
type Config struct {
	Sports     []string         `mapstructure:"sports"`
	Once       bool             `mapstructure:"once"`
	Quiet      bool             `mapstructure:"quiet"`
	Log        LogConfig        `mapstructure:"log"`
	Poll       PollConfig       `mapstructure:"poll"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Arb        ArbConfig        `mapstructure:"arb"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Kalshi     KalshiConfig     `mapstructure:"kalshi"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Sinks      SinksConfig      `mapstructure:"sinks"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

// FetchConfig bounds every venue fan-out.
type FetchConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Retries     int           `mapstructure:"retries"`
}

// ArbConfig holds the optional caller-side profit floor.
type ArbConfig struct {
	MinProfitEnabled bool    `mapstructure:"min_profit_enabled"`
	MinProfit        float64 `mapstructure:"min_profit"`
}

type PolymarketConfig struct {
	GammaURL string            `mapstructure:"gamma_url"`
	ClobURL  string            `mapstructure:"clob_url"`
	EventURL string            `mapstructure:"event_url"`
	Window   time.Duration     `mapstructure:"window"`
	Tags     map[string]string `mapstructure:"tags"`
}

type KalshiConfig struct {
	BaseURL     string                  `mapstructure:"base_url"`
	Concurrency int                     `mapstructure:"concurrency"`
	Series      map[string]SeriesConfig `mapstructure:"series"`
}

type SeriesConfig struct {
	Ticker   string `mapstructure:"ticker"`
	LinkBase string `mapstructure:"link_base"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type SinksConfig struct {
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Supabase SupabaseConfig `mapstructure:"supabase"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
}

type SQLiteConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type SupabaseConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	Table      string `mapstructure:"table"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// envBindings maps config keys to the environment names the deployment uses.
var envBindings = map[string]string{
	"sinks.sqlite.path":          "SQLITE_PATH",
	"sinks.postgres.dsn":         "POSTGRES_DSN",
	"sinks.supabase.url":         "SUPABASE_URL",
	"sinks.supabase.service_key": "SUPABASE_SERVICE_ROLE_KEY",
	"sinks.redis.addr":           "REDIS_ADDR",
	"sinks.redis.password":       "REDIS_PASSWORD",
	"sinks.kafka.brokers":        "KAFKA_BROKERS",
	"sinks.kafka.topic":          "OPPORTUNITIES_KAFKA_TOPIC",
	"metrics.addr":               "METRICS_ADDR",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sports", []string{"nba", "nfl", "nhl"})
	v.SetDefault("once", false)
	v.SetDefault("quiet", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("poll.interval", 30*time.Second)

	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.retries", 4)

	v.SetDefault("arb.min_profit_enabled", false)
	v.SetDefault("arb.min_profit", 0.0)

	v.SetDefault("polymarket.gamma_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.clob_url", "https://clob.polymarket.com")
	v.SetDefault("polymarket.event_url", "https://polymarket.com/event/")
	v.SetDefault("polymarket.window", 21*24*time.Hour)
	tags := map[string]any{}
	for sport, tag := range polymarket.DefaultTagIDs {
		tags[string(sport)] = tag
	}
	v.SetDefault("polymarket.tags", tags)

	v.SetDefault("kalshi.base_url", "https://api.elections.kalshi.com/trade-api/v2")
	v.SetDefault("kalshi.concurrency", 16)
	series := map[string]any{}
	for sport, s := range kalshi.DefaultSeries {
		series[string(sport)] = map[string]any{"ticker": s.Ticker, "link_base": s.LinkBase}
	}
	v.SetDefault("kalshi.series", series)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("sinks.sqlite.enabled", true)
	v.SetDefault("sinks.sqlite.path", "data/arb.db")
	v.SetDefault("sinks.postgres.dsn", "")
	v.SetDefault("sinks.postgres.table", "sports")
	v.SetDefault("sinks.supabase.url", "")
	v.SetDefault("sinks.supabase.service_key", "")
	v.SetDefault("sinks.supabase.table", "sports")
	v.SetDefault("sinks.redis.addr", "")
	v.SetDefault("sinks.redis.password", "")
	v.SetDefault("sinks.redis.db", 0)
	v.SetDefault("sinks.redis.ttl", 24*time.Hour)
	v.SetDefault("sinks.redis.prefix", "sports_arb")
	v.SetDefault("sinks.kafka.brokers", "")
	v.SetDefault("sinks.kafka.topic", "opportunities.sports")
	v.SetDefault("sinks.snapshot.enabled", false)
	v.SetDefault("sinks.snapshot.dir", snapshot.DefaultDir)
}

// Load reads .env, the optional config file, environment variables and the
// given command line arguments, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	fs := pflag.NewFlagSet("sports_arb", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a config.yaml file")
	fs.Bool("quiet", false, "disable logging")
	fs.Bool("once", false, "run a single cycle per sport and exit")
	fs.StringSlice("sports", nil, "sports to scan (nba,nfl,nhl)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	for _, name := range []string{"quiet", "once", "sports"} {
		if err := v.BindPFlag(name, fs.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configPath, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if raw, ok := os.LookupEnv("SAVE"); ok {
		cfg.Sinks.Snapshot.Enabled = snapshot.Truthy(raw)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	sports := make([]string, 0, len(c.Sports))
	seen := make(map[string]bool)
	for _, raw := range c.Sports {
		for _, part := range strings.Split(raw, ",") {
			s := strings.ToLower(strings.TrimSpace(part))
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			sports = append(sports, s)
		}
	}
	c.Sports = sports
}

// Validate rejects configurations the scanner cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Sports) == 0 {
		errs = append(errs, errors.New("no sports configured"))
	}
	for _, s := range c.Sports {
		if _, err := canonical.ParseSport(s); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval))
	}
	if c.Fetch.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("fetch.concurrency must be positive, got %d", c.Fetch.Concurrency))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive, got %s", c.Fetch.Timeout))
	}
	if c.Kalshi.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("kalshi.concurrency must be positive, got %d", c.Kalshi.Concurrency))
	}
	if (c.Sinks.Supabase.URL == "") != (c.Sinks.Supabase.ServiceKey == "") {
		errs = append(errs, errors.New("supabase sink needs both url and service key"))
	}
	return errors.Join(errs...)
}

// SportList returns the configured sports as typed values. Call after Validate.
func (c *Config) SportList() []canonical.Sport {
	out := make([]canonical.Sport, 0, len(c.Sports))
	for _, s := range c.Sports {
		if sport, err := canonical.ParseSport(s); err == nil {
			out = append(out, sport)
		}
	}
	return out
}

// PolymarketTags converts the configured tag ids to a per-sport map.
func (c *Config) PolymarketTags() map[canonical.Sport]string {
	out := make(map[canonical.Sport]string, len(c.Polymarket.Tags))
	for k, v := range c.Polymarket.Tags {
		if sport, err := canonical.ParseSport(k); err == nil {
			out[sport] = v
		}
	}
	return out
}

// KalshiSeries converts the configured series to a per-sport map.
func (c *Config) KalshiSeries() map[canonical.Sport]kalshi.Series {
	out := make(map[canonical.Sport]kalshi.Series, len(c.Kalshi.Series))
	for k, v := range c.Kalshi.Series {
		if sport, err := canonical.ParseSport(k); err == nil {
			out[sport] = kalshi.Series{Ticker: v.Ticker, LinkBase: v.LinkBase}
		}
	}
	return out
}

// Logging builds the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.Log.Level,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Quiet:      c.Quiet,
	}
}
