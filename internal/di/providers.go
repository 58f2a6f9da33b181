package di

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/handler/api"
	internalrepo "ShadowTrade/internal/repository"
	"ShadowTrade/internal/service/ratelimit"
	"ShadowTrade/internal/services/marketdata"
	"ShadowTrade/internal/services/mpc"
	"ShadowTrade/internal/usecase"
	"ShadowTrade/pkg/cache"
	pkgch "ShadowTrade/pkg/clickhouse"
	"ShadowTrade/pkg/config"
	xhttp "ShadowTrade/pkg/http"
	pkgkafka "ShadowTrade/pkg/kafka"
	"ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/metrics"
	"ShadowTrade/pkg/queue"
	"ShadowTrade/pkg/server"
)

// Network is the computation network together with the cluster key clients
// encrypt to. Simulator is set when the network runs in process.
type Network struct {
	service.ComputationNetwork
	ClusterPublicKey []byte
	Simulator        *mpc.Simulator
}

// ProvideLogger builds the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisCache connects to Redis when enabled. A nil cache means every
// Redis-backed component falls back to its in-process variant.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideCache layers a small in-process cache over Redis, or uses the
// in-process cache alone.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	limits := cache.WithMemoryLimits(cfg.Cache.MaxEntries, cfg.Cache.SweepInterval)
	var c cache.Service
	if rc != nil {
		c = cache.NewLayeredCache(rc, cfg.Cache.LocalTTL, limits)
	} else {
		c = cache.NewMemoryCache(limits)
	}
	return c, func() { _ = c.Close() }
}

// ProvideSessionGuard enforces one in-flight computation per session, across
// processes when Redis is available.
func ProvideSessionGuard(cfg *config.Config, rc *cache.RedisCache, l *logger.Logger) repository.SessionGuard {
	if rc != nil {
		return internalrepo.NewRedisSessionGuard(rc.Client(), cfg.Redis.Prefix, cfg.Computation.SessionTTL, l)
	}
	return mpc.NewMemoryGuard()
}

// ProvideQueue picks the Redis queue when Redis is enabled.
func ProvideQueue(cfg *config.Config, rc *cache.RedisCache, l *logger.Logger) queue.Queue {
	qc := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	if rc != nil {
		return queue.NewRedisQueue(l, qc, rc.Client(), queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
	}
	return queue.NewMemoryQueue(l, qc)
}

// ProvideJobStore keeps job statuses in the cache for a day.
func ProvideJobStore(c cache.Service) repository.JobStore {
	return internalrepo.NewCacheJobStore(c, 24*time.Hour)
}

// ProvideClickHouseClient creates a ClickHouse client when enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideRecordStore persists public records in ClickHouse, or in memory.
func ProvideRecordStore(ch *pkgch.Client, l *logger.Logger) (repository.RecordStore, error) {
	if ch == nil {
		return internalrepo.NewMemoryRecordStore(), nil
	}
	store := internalrepo.NewCHRecordStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideRecordPublisher ships public records to Kafka, or straight into the
// record store when Kafka is off. With Kafka, deduplicated error digests are
// shipped to the collector topic too.
func ProvideRecordPublisher(cfg *config.Config, producer *pkgkafka.Producer, store repository.RecordStore, l *logger.Logger) (repository.RecordPublisher, func()) {
	if producer == nil {
		return internalrepo.NewStoreRecordPublisher(store, l), func() {}
	}
	if cfg.Logging.CollectorTopic == "" {
		return internalrepo.NewKafkaRecordPublisher(producer, cfg.Kafka.RecordsTopic, cfg.Kafka.SignalsTopic), func() {}
	}
	l.AddCollector(&logger.CollectionConfig{
		TimeInterval:   cfg.Logging.CollectorFlush,
		CountThreshold: 100,
		Topic:          cfg.Logging.CollectorTopic,
		Publisher:      producer,
	})
	return internalrepo.NewKafkaRecordPublisher(producer, cfg.Kafka.RecordsTopic, cfg.Kafka.SignalsTopic), l.RemoveCollector
}

// ProvideRecordSink is the consumer that moves public records from Kafka into
// the record store. It is nil unless Kafka is enabled with sink_records.
func ProvideRecordSink(cfg *config.Config, store repository.RecordStore, m repository.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.SinkRecords {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.ConsumerGroup),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(usecase.PrivacyHook(l))
	consumer.RegisterHandler(usecase.NewRecordSinkHandler(cfg.Kafka.RecordsTopic, store, m))
	return consumer, nil
}

// ProvideNetwork connects to the MPC gateway at computation.endpoint, or runs
// the in-process simulator with a fresh cluster key.
func ProvideNetwork(cfg *config.Config, l *logger.Logger) (*Network, error) {
	cc := cfg.Computation
	var n Network
	if cc.Endpoint == "" {
		kp, err := mpc.GenerateKeyPair(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("simulator key: %w", err)
		}
		opts := []mpc.SimulatorOption{mpc.WithLatency(cc.Simulator.Latency)}
		if cc.Simulator.FailureRate > 0 {
			opts = append(opts, mpc.WithFailureRate(cc.Simulator.FailureRate, time.Now().UnixNano()))
		}
		n.Simulator = mpc.NewSimulator(kp, l, opts...)
		n.ComputationNetwork = n.Simulator
		n.ClusterPublicKey = kp.Public
		l.Warn("computation endpoint not set, using in-process simulator")
	} else {
		key, err := mpc.ParsePublicKey(cc.ClusterPublicKey)
		if err != nil {
			return nil, &models.ConfigurationError{Field: "computation.cluster_public_key", Reason: err.Error()}
		}
		n.ComputationNetwork = mpc.NewHTTPNetwork(cc.Endpoint, cc.Timeout)
		n.ClusterPublicKey = key
	}
	if cc.Breaker.Enabled {
		n.ComputationNetwork = mpc.NewBreakerNetwork(n.ComputationNetwork, cc.Breaker.ConsecutiveFailures, cc.Breaker.OpenTimeout, l)
	}
	return &n, nil
}

// ProvideEvaluator builds the computation client.
func ProvideEvaluator(cfg *config.Config, n *Network, guard repository.SessionGuard, m repository.Metrics, l *logger.Logger) service.Evaluator {
	cc := cfg.Computation
	return mpc.NewClient(n.ComputationNetwork, n.ClusterPublicKey, mpc.ClientConfig{
		Timeout:      cc.Timeout,
		PollInterval: cc.PollInterval,
		MaxRetries:   cc.MaxRetries,
		BackoffBase:  cc.BackoffBase,
		BackoffCap:   cc.BackoffCap,
	}, l, mpc.WithGuard(guard), mpc.WithMetrics(m))
}

// ProvideMarketData fetches Binance klines through the cache.
func ProvideMarketData(cfg *config.Config, c cache.Service, m repository.Metrics, l *logger.Logger) repository.MarketData {
	limiter := ratelimit.New(cfg.Market.RateLimitRPS, cfg.Market.RateBurst)
	binance := marketdata.NewBinance(cfg.Market.BaseURL, cfg.Market.Timeout, limiter, m, l)
	return marketdata.NewCached(binance, c, cfg.Market.CacheTTL, l)
}

// ProvideStrategyParams reads the private strategy from config.
func ProvideStrategyParams(cfg *config.Config) models.StrategyParams {
	s := cfg.Strategy
	return models.StrategyParams{
		Period:        s.Period,
		Oversold:      s.Oversold,
		Overbought:    s.Overbought,
		RiskFraction:  s.RiskFraction,
		MinConfidence: s.MinConfidence,
	}
}

func ProvideBacktestService(cfg *config.Config, market repository.MarketData, ev service.Evaluator, pub repository.RecordPublisher, m repository.Metrics, l *logger.Logger) *usecase.BacktestService {
	b := cfg.Backtest
	return usecase.NewBacktestService(market, ev, pub, m, l, usecase.BacktestConfig{
		Ledger: usecase.LedgerConfig{
			InitialBalance: b.InitialBalance,
			CommissionPct:  b.CommissionPct,
			SlippagePct:    b.SlippagePct,
			StopLossPct:    b.StopLossPct,
			TakeProfitPct:  b.TakeProfitPct,
			RiskFreeRate:   b.RiskFreeRate,
		},
		AnnualizationFor: b.AnnualizationFor,
		RunTimeout:       b.RunTimeout,
		Parallelism:      b.Parallelism,
	})
}

func ProvideBacktestJob(cfg *config.Config, svc *usecase.BacktestService, jobs repository.JobStore, params models.StrategyParams, l *logger.Logger) *usecase.BacktestJob {
	return usecase.NewBacktestJob(svc, jobs, params, cfg.Queue.RetryLimit, l)
}

func ProvideBacktestUseCase(svc *usecase.BacktestService, q queue.Queue, jobs repository.JobStore, store repository.RecordStore, params models.StrategyParams, l *logger.Logger) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(svc, q, jobs, store, params, l)
}

// ProvideHTTPServer registers the public API and, when asked to, the
// simulator's gateway.
func ProvideHTTPServer(cfg *config.Config, uc *usecase.BacktestUseCase, n *Network, l *logger.Logger) *xhttp.Server {
	handlers := []xhttp.Handler{
		api.NewBacktestEchoHandler(l, uc, ratelimit.New(1, 5)),
	}
	if cfg.Server.SimulateMPC && n.Simulator != nil {
		handlers = append(handlers, api.NewMPCGatewayHandler(l, n.Simulator))
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	q queue.Queue,
	job *usecase.BacktestJob,
	consumer *pkgkafka.Consumer,
	svc *usecase.BacktestService,
	market repository.MarketData,
	ev service.Evaluator,
	pub repository.RecordPublisher,
	m repository.Metrics,
	params models.StrategyParams,
) *server.App {
	q.RegisterJob(job)
	return server.New(server.Deps{
		Config:     cfg,
		Logger:     l,
		HTTP:       httpServer,
		Queue:      q,
		Consumer:   consumer,
		Backtests:  svc,
		Market:     market,
		Evaluator:  ev,
		Publisher:  pub,
		Metrics:    m,
		Strategy:   params,
	})
}
