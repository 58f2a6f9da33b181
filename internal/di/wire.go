//go:build wireinject
// +build wireinject

package di

import (
	"ShadowTrade/pkg/config"
	"ShadowTrade/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSessionGuard,
		ProvideQueue,
		ProvideJobStore,
		ProvideRecordStore,
		ProvideRecordPublisher,
		ProvideRecordSink,

		// Services
		ProvideNetwork,
		ProvideEvaluator,
		ProvideMarketData,
		ProvideStrategyParams,

		// Use cases
		ProvideBacktestService,
		ProvideBacktestJob,
		ProvideBacktestUseCase,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
