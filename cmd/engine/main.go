package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/redis/go-redis/v9"

	"github.com/coinquorum/tradeengine/internal/alerts"
	"github.com/coinquorum/tradeengine/internal/api"
	"github.com/coinquorum/tradeengine/internal/api/ssetoken"
	"github.com/coinquorum/tradeengine/internal/audit"
	"github.com/coinquorum/tradeengine/internal/auth"
	"github.com/coinquorum/tradeengine/internal/config"
	"github.com/coinquorum/tradeengine/internal/db"
	"github.com/coinquorum/tradeengine/internal/deliberation"
	"github.com/coinquorum/tradeengine/internal/engine"
	"github.com/coinquorum/tradeengine/internal/events"
	"github.com/coinquorum/tradeengine/internal/exchange"
	"github.com/coinquorum/tradeengine/internal/executor"
	"github.com/coinquorum/tradeengine/internal/indicators"
	"github.com/coinquorum/tradeengine/internal/llm"
	"github.com/coinquorum/tradeengine/internal/market"
	"github.com/coinquorum/tradeengine/internal/metrics"
	"github.com/coinquorum/tradeengine/internal/portfolio"
	"github.com/coinquorum/tradeengine/internal/risk"
	"github.com/coinquorum/tradeengine/internal/scheduler"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load or validate configuration")
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.App.LogLevel))

	ctx := context.Background()

	database, err := db.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer database.Close()

	exchangeCfg := cfg.Exchanges["default"]
	client := buildExchangeClient(exchangeCfg, cfg.Engine.DryRun)

	var cache *market.DataCache
	if cfg.Redis.Host != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		cache = market.NewDataCache(redisClient, cfg.Engine.CycleInterval)
	}
	assembler := market.NewAssembler(client, cache, indicators.NewService(), log.Logger)

	llmClient := buildLLMClient(cfg.LLM)
	profiles := llm.DefaultAnalysts()
	analysts := make([]*llm.Analyst, 0, len(profiles))
	for _, p := range profiles {
		analysts = append(analysts, llm.NewAnalyst(p, llmClient, ""))
	}

	council := risk.NewCouncil(risk.Limits{
		MaxPositionPercent:     cfg.Risk.MaxPositionPercent,
		MaxLeverage:            float64(cfg.Engine.MaxLeverage),
		MaxStopLossDistance:    cfg.Risk.MaxStopLossDistance,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		MaxSameDirection:       cfg.Risk.MaxSameDirection,
		MaxWeeklyDrawdown:      cfg.Risk.MaxWeeklyDrawdown,
		MaxFundingAgainst:      cfg.Risk.MaxFundingAgainst,
		NetExposureLongLimit:   cfg.Risk.NetExposureLongLimit,
		NetExposureShortLimit:  cfg.Risk.NetExposureShortLimit,
	})
	breaker := risk.NewMarketCircuitBreaker(risk.MarketThresholds{
		BTCDropYellowPercent:  cfg.Risk.BTCDropYellowPercent,
		BTCDropOrangePercent:  cfg.Risk.BTCDropOrangePercent,
		BTCDropRedPercent:     cfg.Risk.BTCDropRedPercent,
		DrawdownYellowPercent: cfg.Risk.DrawdownYellowPercent,
		DrawdownOrangePercent: cfg.Risk.DrawdownOrangePercent,
		DrawdownRedPercent:    cfg.Risk.DrawdownRedPercent,
		FundingExtremePercent: cfg.Risk.FundingExtremePercent,
	})

	// The stage-3 championship judge is a dedicated scoring call, independent
	// of any one analyst's persona, so it reuses the same model client the
	// analyst roster is built from rather than a ninth profile.
	pipeline := deliberation.NewPipeline(analysts, council, assembler, llmClient, cfg.Engine, log.Logger)

	var mirror events.Mirror
	if cfg.NATS.URL != "" {
		m, err := events.NewNATSMirror(events.NATSMirrorConfig{URL: cfg.NATS.URL, Prefix: cfg.NATS.EventSubjectPrefix})
		if err != nil {
			log.Warn().Err(err).Msg("NATS event mirror unavailable, continuing with in-process bus only")
		} else {
			mirror = m
		}
	}
	bus := events.New(mirror)

	aiLog := llm.NewAILogRecorder(database, client)
	exec := executor.New(client, database, bus, aiLog, executor.Config{
		MaxPositionPercent: cfg.Risk.MaxPositionPercent,
		MinBalanceToTrade:  cfg.Engine.MinBalanceToTrade,
		DryRun:             cfg.Engine.DryRun,
	}, log.Logger)

	schedule := scheduler.NewSchedule(cfg.Engine.PeakWindowStartHourUTC, cfg.Engine.PeakWindowEndHourUTC, cfg.Engine.MinTradeInterval)

	// The shared portfolio is scoped to a single well-known engine account,
	// distinct from whichever operator account later authenticates and calls
	// /autonomous/start (that user id only flows into the audit trail).
	systemUser, err := getOrCreateSystemUser(ctx, database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to provision system user")
	}
	pf := portfolio.New(systemUser.ID, client, database, log.Logger)

	var alertManager *alerts.Manager
	var auditLogger *audit.Logger
	if cfg.Monitoring.EnableMetrics {
		alertManager = alerts.NewManager(alerts.NewLogAlerter(), alerts.NewConsoleAlerter())
		auditLogger = audit.NewLogger(database.Pool(), true)
	}

	calculator := risk.NewCalculatorWithPool(database.Pool())

	controller := engine.New(engine.Deps{
		Client:     client,
		Database:   database,
		Bus:        bus,
		Portfolio:  pf,
		Pipeline:   pipeline,
		Executor:   exec,
		Breaker:    breaker,
		Council:    council,
		Calculator: calculator,
		Schedule:   schedule,
		Config:     cfg.Engine,
		AnalystIDs: engine.AnalystIDs(profiles),
		Alerts:     alertManager,
		Audit:      auditLogger,
	}, log.Logger)

	authSvc := auth.New(database, cfg.Auth, log.Logger)
	tokens := ssetoken.New(log.Logger)

	apiServer := api.NewServer(api.Deps{
		DB:         database,
		Auth:       authSvc,
		Controller: controller,
		Bus:        bus,
		Tokens:     tokens,
		Config:     cfg.API,
	}, log.Logger)

	var metricsServer *metrics.Server
	if cfg.Monitoring.EnableMetrics {
		metricsServer = metrics.NewServer(cfg.Monitoring.PrometheusPort, log.Logger)
	}

	errCh := make(chan error, 2)
	go func() {
		if err := apiServer.Start(); err != nil {
			errCh <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal server error, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	controller.Cleanup(shutdownCtx)
	tokens.Stop()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("api server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	log.Info().Msg("engine process exited cleanly")
}

// buildExchangeClient picks the mock exchange client in dry-run mode so a
// fresh checkout can run the full pipeline without real API credentials;
// live trading requires exchangeCfg.APIKey/SecretKey/BaseURL.
func buildExchangeClient(exchangeCfg config.ExchangeConfig, dryRun bool) exchange.Client {
	if dryRun || exchangeCfg.APIKey == "" {
		return exchange.NewMockClient(log.Logger)
	}
	rateLimitRPS := 1000.0 / float64(exchangeCfg.RateLimitMS)
	return exchange.NewHTTPClient(exchange.HTTPClientConfig{
		BaseURL:      exchangeCfg.BaseURL,
		APIKey:       exchangeCfg.APIKey,
		SecretKey:    exchangeCfg.SecretKey,
		RateLimitRPS: rateLimitRPS,
		Timeout:      10 * time.Second,
	}, log.Logger)
}

// buildLLMClient wires the fallback client whenever a fallback model is
// configured, otherwise a single-model client.
func buildLLMClient(cfg config.LLMConfig) llm.LLMClient {
	primary := llm.ClientConfig{
		Endpoint: cfg.Endpoint, APIKey: cfg.APIKey, Model: cfg.PrimaryModel,
		Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens, Timeout: cfg.GetTimeout(),
	}
	if cfg.FallbackModel == "" {
		return llm.NewClient(primary)
	}

	fallback := primary
	fallback.Model = cfg.FallbackModel
	return llm.NewFallbackClient(llm.FallbackConfig{
		PrimaryConfig:        primary,
		PrimaryName:          cfg.PrimaryModel,
		FallbackConfigs:      []llm.ClientConfig{fallback},
		FallbackNames:        []string{cfg.FallbackModel},
		CircuitBreakerConfig: llm.DefaultCircuitBreakerConfig(),
	})
}

// systemUserEmail identifies the engine's own shared-portfolio account; it
// never authenticates over HTTP, it only owns the portfolio/position rows.
const systemUserEmail = "engine@system.local"

func getOrCreateSystemUser(ctx context.Context, database *db.DB) (*db.User, error) {
	u, err := database.GetUserByEmail(ctx, systemUserEmail)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}
	return database.CreateUser(ctx, systemUserEmail, "")
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return parsed
}
