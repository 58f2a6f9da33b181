package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		SimulateMPC     bool          `yaml:"simulate_mpc"`
	} `yaml:"server"`
	Logging struct {
		Level          string        `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format         string        `yaml:"format" default:"console" validate:"oneof=json console"`
		Output         string        `yaml:"output" default:"stdout"`
		CollectorTopic string        `yaml:"collector_topic"`
		CollectorFlush time.Duration `yaml:"collector_flush" default:"30s"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Strategy    Strategy    `yaml:"strategy"`
	Computation Computation `yaml:"computation"`
	Backtest    Backtest    `yaml:"backtest"`
	Market      struct {
		BaseURL      string        `yaml:"base_url" default:"https://api.binance.com"`
		StreamURL    string        `yaml:"stream_url" default:"wss://stream.binance.com:9443/ws"`
		Timeout      time.Duration `yaml:"timeout" default:"10s"`
		RateLimitRPS float64       `yaml:"rate_limit_rps" default:"10" validate:"gt=0"`
		RateBurst    int           `yaml:"rate_burst" default:"5" validate:"gte=1"`
		CacheTTL     time.Duration `yaml:"cache_ttl" default:"5m"`
		PingInterval time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"market"`
	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Host         string `yaml:"host" default:"localhost"`
		Port         int    `yaml:"port" default:"6379"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size" default:"10"`
		MinIdleConns int    `yaml:"min_idle_conns" default:"2"`
		Prefix       string `yaml:"prefix" default:"shadowtrade"`
	} `yaml:"redis"`
	Cache struct {
		MaxEntries    int           `yaml:"max_entries" default:"10000" validate:"gt=0"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"5m"`
		LocalTTL      time.Duration `yaml:"local_ttl" default:"30s"`
	} `yaml:"cache"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"2" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"2"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled       bool          `yaml:"enabled"`
		Brokers       []string      `yaml:"brokers"`
		RecordsTopic  string        `yaml:"records_topic" default:"shadowtrade.records"`
		SignalsTopic  string        `yaml:"signals_topic" default:"shadowtrade.signals"`
		RequiredAcks  int           `yaml:"required_acks" default:"-1"`
		Compression   string        `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
		MaxAttempts   int           `yaml:"max_attempts" default:"3"`
		WriteTimeout  time.Duration `yaml:"write_timeout" default:"10s"`
		ConsumerGroup string        `yaml:"consumer_group" default:"shadowtrade-records"`
		DLQTopic      string        `yaml:"dlq_topic" default:"shadowtrade.records.dlq"`
		SinkRecords   bool          `yaml:"sink_records" default:"true"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"shadowtrade"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		UseHTTP      bool          `yaml:"use_http"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"clickhouse"`
	Live struct {
		Symbol   string `yaml:"symbol" default:"SOLUSDT"`
		Interval string `yaml:"interval" default:"1m"`
	} `yaml:"live"`
}

// Strategy holds the private strategy parameters. They are encrypted before
// leaving the process and never appear in public records.
type Strategy struct {
	Period        int     `yaml:"period" default:"14" validate:"gte=2,lte=200"`
	Oversold      float64 `yaml:"oversold" default:"30" validate:"gte=0,lte=100"`
	Overbought    float64 `yaml:"overbought" default:"70" validate:"gte=0,lte=100"`
	RiskFraction  float64 `yaml:"risk_fraction" default:"0.1" validate:"gt=0,lte=1"`
	MinConfidence int     `yaml:"min_confidence" default:"0" validate:"gte=0,lte=100"`
}

// Computation configures the MPC client.
type Computation struct {
	Endpoint         string        `yaml:"endpoint"`
	ClusterPublicKey string        `yaml:"cluster_public_key"` // hex X25519 key of the MPC cluster
	Timeout          time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	PollInterval     time.Duration `yaml:"poll_interval" default:"500ms" validate:"gt=0"`
	MaxRetries       int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=20"`
	BackoffBase      time.Duration `yaml:"backoff_base" default:"200ms" validate:"gt=0"`
	BackoffCap       time.Duration `yaml:"backoff_cap" default:"5s" validate:"gt=0"`
	SessionTTL       time.Duration `yaml:"session_ttl" default:"5m" validate:"gt=0"`
	Breaker          struct {
		Enabled             bool          `yaml:"enabled" default:"true"`
		ConsecutiveFailures uint32        `yaml:"consecutive_failures" default:"5"`
		OpenTimeout         time.Duration `yaml:"open_timeout" default:"30s"`
	} `yaml:"breaker"`
	// Simulator tunes the in-process network used when Endpoint is empty.
	Simulator struct {
		Latency     time.Duration `yaml:"latency" default:"20ms"`
		FailureRate float64       `yaml:"failure_rate" validate:"gte=0,lt=1"`
	} `yaml:"simulator"`
}

// MaxEvaluation bounds one evaluation: every attempt timing out plus the
// backoff between attempts.
func (c Computation) MaxEvaluation() time.Duration {
	total := time.Duration(c.MaxRetries+1) * c.Timeout
	d := c.BackoffBase
	for i := 0; i < c.MaxRetries; i++ {
		if d > c.BackoffCap {
			d = c.BackoffCap
		}
		total += d
		d *= 2
	}
	return total
}

// Backtest configures the simulated ledger and report statistics.
type Backtest struct {
	InitialBalance   float64       `yaml:"initial_balance" default:"10000" validate:"gt=0"`
	CommissionPct    float64       `yaml:"commission_pct" validate:"gte=0,lt=100"`
	SlippagePct      float64       `yaml:"slippage_pct" validate:"gte=0,lt=100"`
	// Exit levels in percent from entry; 0 disables.
	StopLossPct      float64       `yaml:"stop_loss_pct" validate:"gte=0,lt=100"`
	TakeProfitPct    float64       `yaml:"take_profit_pct" validate:"gte=0"`
	RiskFreeRate     float64       `yaml:"risk_free_rate"`
	AnnualizationFor string        `yaml:"annualization_for" default:"1h"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	Parallelism      int           `yaml:"parallelism" default:"4" validate:"gte=1"`
	DefaultInterval  string        `yaml:"default_interval" default:"1h"`
	DefaultCount     int           `yaml:"default_count" default:"500" validate:"gte=3"`
}

var validate = validator.New()

// Default returns a configuration populated only from default tags.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SHADOWTRADE_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SHADOWTRADE_MPC_ENDPOINT"); v != "" {
		c.Computation.Endpoint = v
	}
	if v := os.Getenv("SHADOWTRADE_MPC_CLUSTER_KEY"); v != "" {
		c.Computation.ClusterPublicKey = v
	}
	if v := os.Getenv("SHADOWTRADE_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("SHADOWTRADE_REDIS_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Redis.Host = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
		c.Redis.Enabled = true
	}
	if v := os.Getenv("SHADOWTRADE_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if c.Computation.BackoffCap < c.Computation.BackoffBase {
		return fmt.Errorf("computation.backoff_cap must be >= backoff_base")
	}
	if max := c.Computation.MaxEvaluation(); c.Computation.SessionTTL <= max {
		return fmt.Errorf("computation.session_ttl must exceed the longest evaluation (%s)", max)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// Validate checks the strategy thresholds.
func (s Strategy) Validate() error {
	if err := validate.Struct(s); err != nil {
		return err
	}
	if s.Oversold >= s.Overbought {
		return fmt.Errorf("strategy.oversold must be < strategy.overbought")
	}
	return nil
}
