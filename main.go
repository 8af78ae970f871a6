package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"confluence-engine/config"
	"confluence-engine/internal/api"
	"confluence-engine/internal/cache"
	"confluence-engine/internal/database"
	"confluence-engine/internal/engine"
	"confluence-engine/internal/events"
	"confluence-engine/internal/logging"
	"confluence-engine/internal/marketdata"
	"confluence-engine/internal/plans"
	"confluence-engine/internal/profile"
	"confluence-engine/internal/risk"
	"confluence-engine/internal/scanner"
	"confluence-engine/internal/structure"
	"confluence-engine/internal/zones"
)

func main() {
	// .env is optional; environment variables win either way
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	logging.SetDefault(logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
	}))
	logger := logging.WithComponent("Main")

	bus := events.NewEventBus()

	var repo *database.Repository
	var db *database.DB
	if cfg.DatabaseConfig.Enabled {
		db, err = database.NewDB(cfg.DatabaseConfig)
		if err != nil {
			logger.Error("database connection failed", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()
		repo = database.NewRepository(db)
		logger.Info("database connected", "host", cfg.DatabaseConfig.Host)
	} else {
		logger.Info("database disabled, plans held in memory only")
	}

	var cacheService *cache.Service
	if cfg.RedisConfig.Enabled {
		cacheService, err = cache.NewService(cfg.RedisConfig)
		if err != nil {
			logger.Warn("redis unavailable, continuing without cache", "error", err.Error())
			cacheService = nil
		} else {
			defer cacheService.Close()
			logger.Info("redis cache connected", "addr", cfg.RedisConfig.Address)
		}
	}

	var fetcher marketdata.Fetcher
	if cfg.MarketDataConfig.MockMode {
		logger.Info("mock market data enabled")
		fetcher = marketdata.NewMockClient()
	} else {
		fetcher = marketdata.NewClient(cfg.MarketDataConfig.BaseURL)
	}

	engineCfg := engineConfigFrom(cfg)
	eng := engine.New(engineCfg)
	account := engine.Account{
		Balance: cfg.AccountConfig.Balance,
		RiskPct: cfg.AccountConfig.RiskPct,
	}

	var trackerRepo plans.Repository
	if repo != nil {
		trackerRepo = repo
	}
	tracker := plans.NewTracker(
		trackerRepo,
		risk.NewManager(engineCfg.Risk),
		24*time.Hour,
		zerolog.New(os.Stderr).With().Timestamp().Logger(),
	)

	sc := scanner.NewScanner(fetcher, eng, account, cacheService, repo, tracker, bus, scanner.Config{
		Enabled:      cfg.ScannerConfig.Enabled,
		Symbols:      cfg.ScannerConfig.Symbols,
		Timeframe:    cfg.MarketDataConfig.Timeframe,
		CandleLimit:  cfg.MarketDataConfig.CandleLimit,
		ScanInterval: time.Duration(cfg.ScannerConfig.ScanInterval) * time.Second,
		WorkerCount:  cfg.ScannerConfig.WorkerCount,
		ScanTimeout:  time.Duration(cfg.ScannerConfig.ScanTimeout) * time.Second,
	})
	sc.Start()

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(sc, tracker, repo, bus, api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		})
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("API server failed", "error", err.Error())
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	sc.Stop()
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown failed", "error", err.Error())
		}
	}
	logger.Info("shutdown complete")
}

// engineConfigFrom maps flat configuration onto the engine parameter set
func engineConfigFrom(cfg *config.Config) engine.Config {
	e := engine.DefaultConfig()

	e.OrderBlock = zones.OrderBlockConfig{
		Lookback:            cfg.EngineConfig.OrderBlockLookback,
		MinCandles:          cfg.EngineConfig.OrderBlockMinCandles,
		MaxCandles:          cfg.EngineConfig.OrderBlockMaxCandles,
		ImpulseThresholdPct: cfg.EngineConfig.ImpulseThresholdPct,
		MaxAge:              cfg.EngineConfig.OrderBlockMaxAge,
	}
	e.FVG = zones.FVGConfig{
		MinSizePct:         cfg.EngineConfig.FVGMinSizePct,
		StrongThresholdPct: cfg.EngineConfig.FVGStrongThresholdPct,
		MaxAgeBars:         cfg.EngineConfig.FVGMaxAgeBars,
	}
	e.Structure = structure.Config{
		SwingLookback: cfg.EngineConfig.SwingLookback,
	}
	e.Profile = profile.Config{
		Bins:             cfg.EngineConfig.ProfileBins,
		ValueAreaPercent: cfg.EngineConfig.ValueAreaPercent,
	}
	e.TolerancePct = cfg.EngineConfig.ConfluenceTolerancePct
	e.MinSignals = cfg.EngineConfig.MinSignals
	e.ProfileWindow = cfg.EngineConfig.ProfileWindow
	e.MaxPlans = cfg.EngineConfig.MaxPlans

	e.Risk = risk.Config{
		MaxRiskPct:            cfg.RiskConfig.MaxRiskPct,
		MinRiskRewardRatio:    cfg.RiskConfig.MinRiskRewardRatio,
		ATRMultiplier:         cfg.RiskConfig.ATRMultiplier,
		TrailingPct:           cfg.RiskConfig.TrailingPct,
		TrailingActivationPct: cfg.RiskConfig.TrailingActivationPct,
	}
	return e
}
