package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	httpapi "github.com/meteomarkets/weather-oracle/internal/api/http"
	"github.com/meteomarkets/weather-oracle/internal/chain"
	"github.com/meteomarkets/weather-oracle/internal/config"
	"github.com/meteomarkets/weather-oracle/internal/logger"
	"github.com/meteomarkets/weather-oracle/internal/metrics"
	"github.com/meteomarkets/weather-oracle/internal/poller"
	"github.com/meteomarkets/weather-oracle/internal/scheduler"
	"github.com/meteomarkets/weather-oracle/internal/weather"
	"github.com/meteomarkets/weather-oracle/internal/weather/providers"
)

// lowBalanceEther is the health-check warning threshold for the oracle
// wallet.
const lowBalanceEther = 0.01

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl := logger.New(cfg.LogLevel, cfg.LogFormat)
	zl.Info().Str("environment", cfg.Environment).Msg("starting weather oracle service")

	rec := metrics.New()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provs := []weather.Provider{
		providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey),
		providers.NewOpenMeteoProvider(httpClient),
		providers.NewTomorrowProvider(httpClient, cfg.TomorrowAPIKey),
	}
	weatherSvc := weather.NewService(provs, cfg.AggregationTimeout, zl, rec)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		chainClient *chain.Client
		resolver    scheduler.Resolver
	)
	if cfg.ChainEnabled() {
		chainClient, err = chain.NewClient(ctx, chain.Config{
			RPCURL:         cfg.RPCURL,
			PrivateKey:     cfg.OraclePrivateKey,
			FactoryAddress: cfg.FactoryAddress,
		}, zl)
		if err != nil {
			zl.Error().Err(err).Msg("chain connection failed; running without discovery or submission")
		} else {
			defer chainClient.Close()
			resolver = chain.NewResolver(chainClient.Backend(), chainClient.FactoryAddress(), chainClient.TransactOpts(), zl)
		}
	} else {
		zl.Warn().Msg("RPC_URL, ORACLE_PRIVATE_KEY or MARKET_FACTORY_ADDRESS missing; running health-check only")
	}

	sched := scheduler.New(weatherSvc, resolver, cfg.GraceDelay, cfg.FireTimeout, zl, rec)
	defer sched.Stop()

	healthCheck(ctx, cfg, zl, chainClient, weatherSvc)

	if chainClient != nil {
		discovery := chain.NewDiscovery(chainClient.Backend(), chainClient.FactoryAddress(), zl)
		p := poller.New(discovery, sched, cfg.DiscoveryInterval, zl)
		if err := p.Start(); err != nil {
			zl.Error().Err(err).Msg("failed to start discovery poller")
		} else {
			defer p.Stop()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-oracle",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	httpapi.RegisterRoutes(app, sched)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error().Err(err).Msg("http server stopped")
		}
	}()

	zl.Info().Str("port", cfg.Port).Msg("oracle service running")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("error during shutdown")
	}
}

// healthCheck logs the wallet balance and, in development, exercises one
// weather aggregation so broken API keys surface at startup.
func healthCheck(ctx context.Context, cfg *config.AppConfig, zl zerolog.Logger, chainClient *chain.Client, weatherSvc *weather.Service) {
	zl.Info().Msg("running startup health check")

	if chainClient != nil {
		balance, err := chainClient.WalletBalanceEther(ctx)
		if err != nil {
			zl.Warn().Err(err).Msg("could not fetch wallet balance")
		} else {
			zl.Info().Float64("balanceEther", balance).Str("wallet", chainClient.WalletAddress().Hex()).
				Msg("oracle wallet balance")
			if balance < lowBalanceEther {
				zl.Warn().Float64("balanceEther", balance).
					Msg("low wallet balance; may not cover gas")
			}
		}
	}

	if cfg.Environment == "development" {
		agg, err := weatherSvc.AggregateTemperature(ctx, weather.CityNYC)
		if err != nil {
			zl.Warn().Err(err).Msg("weather connectivity test failed; check API keys")
		} else {
			zl.Info().Float64("medianF", agg.MedianF).Int("sources", agg.Sources).
				Msg("weather connectivity test passed")
		}
	}

	zl.Info().Msg("health check complete")
}
