package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Strategy.Period != 14 || c.Strategy.Oversold != 30 || c.Strategy.Overbought != 70 {
		t.Fatalf("unexpected strategy defaults: %+v", c.Strategy)
	}
	if c.Computation.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", c.Computation.Timeout)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: test
strategy:
  period: 20
  oversold: 25
  overbought: 75
computation:
  max_retries: 5
  backoff_base: 100ms
  backoff_cap: 1s
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Strategy.Period != 20 || c.Strategy.Oversold != 25 {
		t.Fatalf("strategy not applied: %+v", c.Strategy)
	}
	if c.Computation.MaxRetries != 5 || c.Computation.BackoffBase != 100*time.Millisecond {
		t.Fatalf("computation not applied: %+v", c.Computation)
	}
	// untouched sections keep defaults
	if c.Backtest.InitialBalance != 10000 {
		t.Fatalf("initial balance = %v", c.Backtest.InitialBalance)
	}
}

func TestParseRejectsInvalidStrategy(t *testing.T) {
	cases := map[string]string{
		"inverted thresholds": "strategy:\n  oversold: 70\n  overbought: 30\n",
		"equal thresholds":    "strategy:\n  oversold: 50\n  overbought: 50\n",
		"period too small":    "strategy:\n  period: 1\n",
		"risk above one":      "strategy:\n  risk_fraction: 1.5\n",
		"negative oversold":   "strategy:\n  oversold: -1\n",
		"min confidence":      "strategy:\n  min_confidence: 101\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestParseRejectsBackoffCapBelowBase(t *testing.T) {
	_, err := Parse([]byte("computation:\n  backoff_base: 2s\n  backoff_cap: 1s\n"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseRejectsSessionTTLShorterThanEvaluation(t *testing.T) {
	doc := "computation:\n  timeout: 30s\n  max_retries: 3\n  backoff_base: 1s\n  backoff_cap: 2s\n  session_ttl: 2m\n"
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("expected session_ttl error")
	}
	if !strings.Contains(err.Error(), "session_ttl") {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := Parse([]byte(strings.Replace(doc, "session_ttl: 2m", "session_ttl: 3m", 1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// 4 attempts of 30s plus backoffs of 1s, 2s, 2s
	if got := c.Computation.MaxEvaluation(); got != 125*time.Second {
		t.Fatalf("MaxEvaluation = %s", got)
	}
}

func TestStrategyErrorHidesThresholds(t *testing.T) {
	_, err := Parse([]byte("strategy:\n  oversold: 63\n  overbought: 41\n"))
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	if strings.Contains(msg, "63") || strings.Contains(msg, "41") {
		t.Fatalf("error leaks threshold values: %s", msg)
	}
	if !strings.Contains(msg, "oversold") {
		t.Fatalf("error should name the field: %s", msg)
	}
}

func TestLoadWithEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("environment: dev\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHADOWTRADE_MPC_ENDPOINT", "http://mpc.local")
	t.Setenv("SHADOWTRADE_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHADOWTRADE_REDIS_ADDR", "redis:6380")

	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Computation.Endpoint != "http://mpc.local" {
		t.Errorf("endpoint = %q", c.Computation.Endpoint)
	}
	if !c.Kafka.Enabled || len(c.Kafka.Brokers) != 2 {
		t.Errorf("kafka = %+v", c.Kafka)
	}
	if !c.Redis.Enabled || c.Redis.Host != "redis" || c.Redis.Port != 6380 {
		t.Errorf("redis = %+v", c.Redis)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if c.Computation.Endpoint != "" {
		t.Fatalf("sample should run the simulator, endpoint = %q", c.Computation.Endpoint)
	}
	if c.Backtest.CommissionPct != 0.1 || c.Live.Symbol != "SOLUSDT" {
		t.Fatalf("sample not applied: %+v %+v", c.Backtest, c.Live)
	}
}
