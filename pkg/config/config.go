package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"Corexia/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Log         struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"json"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	// Backend selects where decision logs go (kafka, clickhouse, memory) and
	// where agent runtime state lives (redis, memory).
	Backend struct {
		Type  string `yaml:"type" default:"clickhouse"`
		State string `yaml:"state" default:"redis"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers       []string `yaml:"brokers"`
		DecisionTopic string   `yaml:"decision_topic" default:"corexia.decisions"`
		LogTopic      string   `yaml:"log_topic" default:"corexia.logs"`
		RequiredAcks  int      `yaml:"required_acks" default:"-1"`
		Compression   string   `yaml:"compression" default:"snappy"`
		Producer      struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"corexia-decision-sink"`
			Workers    int           `yaml:"workers" default:"2"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"corexia.decisions.dlq"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"corexia"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
		Migrate      bool          `yaml:"migrate" default:"true"`
	} `yaml:"clickhouse"`
	Redis struct {
		Addr      string `yaml:"addr" default:"localhost:6379"`
		Password  string `yaml:"password"`
		DB        int    `yaml:"db"`
		KeyPrefix string `yaml:"key_prefix" default:"corexia"`
	} `yaml:"redis"`
	Indicators struct {
		BaseURL       string        `yaml:"base_url" default:"http://localhost:8000"`
		Timeout       time.Duration `yaml:"timeout" default:"60s"`
		MaxRetries    int           `yaml:"max_retries" default:"2"`
		RetryBackoff  time.Duration `yaml:"retry_backoff" default:"500ms"`
		RatePerSecond float64       `yaml:"rate_per_second" default:"2"`
		Burst         int           `yaml:"burst" default:"2"`
		BreakerTrips  uint32        `yaml:"breaker_trips" default:"3"`
		BreakerOpen   time.Duration `yaml:"breaker_open" default:"60s"`
		Timeframes    []string      `yaml:"timeframes" default:"[\"1W\",\"1D\",\"4H\",\"90M\"]"`
		CacheTTL      time.Duration `yaml:"cache_ttl" default:"10m"`
	} `yaml:"indicators"`
	Agents struct {
		Symbols         []string                   `yaml:"symbols" default:"[\"SPY\"]"`
		Enabled         []string                   `yaml:"enabled" default:"[\"steward\",\"operator\",\"hunter\"]"`
		StartingCapital float64                    `yaml:"starting_capital" default:"10000"`
		Profiles        map[string]ProfileOverride `yaml:"profiles"`
	} `yaml:"agents"`
	Scheduler struct {
		Enabled         bool     `yaml:"enabled" default:"true"`
		Timezone        string   `yaml:"timezone" default:"America/New_York"`
		RunAt           string   `yaml:"run_at" default:"16:15"`
		SnapshotAt      string   `yaml:"snapshot_at" default:"16:30"`
		IngestAt        string   `yaml:"ingest_at" default:"16:45"`
		BackfillAt      string   `yaml:"backfill_at" default:"17:00"`
		SnapshotSymbols []string `yaml:"snapshot_symbols" default:"[\"SPY\",\"QQQ\",\"IWM\",\"DIA\",\"VIX\"]"`
		VolSymbol       string   `yaml:"vol_symbol" default:"VIX"`
		IngestDays      int      `yaml:"ingest_days" default:"45"`
	} `yaml:"scheduler"`
	Queue struct {
		Mode         string        `yaml:"mode" default:"redis"`
		Workers      int           `yaml:"workers" default:"2"`
		RetryLimit   int           `yaml:"retry_limit" default:"3"`
		RetryDelay   time.Duration `yaml:"retry_delay" default:"30s"`
		PollInterval time.Duration `yaml:"poll_interval" default:"5s"`
	} `yaml:"queue"`
	PriceFeed struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url" default:"wss://ws.finnhub.io"`
		APIKey         string        `yaml:"api_key"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"pricefeed"`
	RateLimit struct {
		RunCapacity     float64 `yaml:"run_capacity" default:"3"`
		RunRefillPerSec float64 `yaml:"run_refill_per_sec" default:"0.05"`
	} `yaml:"rate_limit"`
}

// ProfileOverride replaces individual agent profile limits; zero values keep the built-in limit.
type ProfileOverride struct {
	MaxPositionPct      float64 `yaml:"max_position_pct"`
	MaxPositions        int     `yaml:"max_positions"`
	MaxDrawdownPct      float64 `yaml:"max_drawdown_pct"`
	DailyLossLimitPct   float64 `yaml:"daily_loss_limit_pct"`
	CooldownAfterLosses int     `yaml:"cooldown_after_losses"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// Default returns a configuration populated only from struct defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML file on top of the struct defaults and validates it.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, then a local .env file if present,
// then applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COREXIA_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("COREXIA_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("COREXIA_STATE_BACKEND"); v != "" {
		c.Backend.State = v
	}
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Agents.Symbols = splitList(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("COREXIA_QUEUE_MODE"); v != "" {
		c.Queue.Mode = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("INDICATORS_BASE_URL"); v != "" {
		c.Indicators.BaseURL = v
	}
	if v := os.Getenv("PRICEFEED_API_KEY"); v != "" {
		c.PriceFeed.APIKey = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case "kafka", "clickhouse", "memory":
	default:
		return fmt.Errorf("backend.type must be 'kafka', 'clickhouse' or 'memory', got '%s'", c.Backend.Type)
	}
	switch c.Backend.State {
	case "redis", "memory":
	default:
		return fmt.Errorf("backend.state must be 'redis' or 'memory', got '%s'", c.Backend.State)
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if len(c.Agents.Symbols) == 0 {
		return fmt.Errorf("agents.symbols cannot be empty")
	}
	if c.Agents.StartingCapital <= 0 {
		return fmt.Errorf("agents.starting_capital must be positive")
	}
	if c.Indicators.BaseURL == "" {
		return fmt.Errorf("indicators.base_url is required")
	}
	switch c.Queue.Mode {
	case "redis", "inline":
	default:
		return fmt.Errorf("queue.mode must be 'redis' or 'inline', got '%s'", c.Queue.Mode)
	}
	for _, clock := range []string{c.Scheduler.RunAt, c.Scheduler.SnapshotAt, c.Scheduler.IngestAt, c.Scheduler.BackfillAt} {
		if _, _, err := util.ParseClock(clock); err != nil {
			return fmt.Errorf("scheduler: %w", err)
		}
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("scheduler.timezone: %w", err)
	}
	if c.PriceFeed.Enabled && c.PriceFeed.APIKey == "" {
		return fmt.Errorf("pricefeed.api_key is required when the price feed is enabled")
	}
	return nil
}
