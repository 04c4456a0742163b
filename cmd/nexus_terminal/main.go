package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nexus_terminal/internal/advisory"
	"nexus_terminal/internal/ai"
	"nexus_terminal/internal/config"
	"nexus_terminal/internal/dashboard"
	"nexus_terminal/internal/jitter"
	"nexus_terminal/internal/logger"
	"nexus_terminal/internal/market"
	"nexus_terminal/internal/market/alpaca"
	"nexus_terminal/internal/market/binance"
	"nexus_terminal/internal/models"
	"nexus_terminal/internal/news"
	"nexus_terminal/internal/portfolio"
	"nexus_terminal/internal/scheduler"
	"nexus_terminal/internal/server"
	"nexus_terminal/internal/storage"
	"nexus_terminal/internal/telegram"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const VersionFile = "version.latest"

func main() {
	// Load configuration first to get logger settings
	cfg, err := config.Load()
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg.Version = readVersion()

	log, closer := logger.New(logger.Config{
		Level:      cfg.LogLevel,
		Pretty:     cfg.LogPretty,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.MaxLogSizeMB,
		MaxBackups: cfg.MaxLogBackups,
	})
	defer closer.Close()
	logger.SetGlobalLogger(log)
	config.PrintEnvFile(log)
	reportPreviousSession(cfg.SessionExportFile, log)

	// Components
	aiClient := ai.NewClient(ai.Options{
		APIKey:    cfg.GeminiAPIKey,
		BaseURL:   cfg.GeminiBaseURL,
		Model:     cfg.GeminiModel,
		ChatModel: cfg.GeminiChatModel,
	}, log)

	lifecycle := advisory.New(aiClient, log,
		advisory.WithStageInterval(cfg.StageInterval),
		advisory.WithTimeout(cfg.AdvisoryTimeout),
	)

	settlement := portfolio.SettleCredit
	if cfg.SellSettlement == config.SellSettlementNone {
		settlement = portfolio.SettleNone
	}
	ledger := portfolio.NewLedger(log, nil, portfolio.WithSettlement(settlement))

	feed := market.NewFeed(newQuoteSource(cfg.PriceSource), market.FeedOptions{
		Symbols:    cfg.PriceSymbols,
		Interval:   cfg.PricePollInterval,
		StaleAfter: cfg.FeedStaleAfter,
		MaxRetries: cfg.FeedMaxRetries,
	}, log)

	live := jitter.New(cfg.JitterInterval, nil, log)
	headlines := news.NewRotator(models.Headlines, log)
	tg := telegram.New(telegram.Options{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID}, log)

	ctrl := dashboard.New(dashboard.Deps{
		Advisor:   lifecycle,
		Ledger:    ledger,
		LivePrice: live,
		Assistant: aiClient,
		Feed:      feed,
		News:      headlines,
		Notifier:  tg,
	}, log)

	// Periodic tasks
	sched := scheduler.New(log)
	if err := feed.Start(sched); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule price feed")
	}
	if err := headlines.Start(sched, cfg.NewsInterval); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule news rotation")
	}
	sched.Start()
	log.Info().Strs("tasks", sched.Tasks()).Msg("Periodic tasks scheduled")

	srv := server.New(server.Config{
		Port:      cfg.HTTPPort,
		Version:   cfg.Version,
		Log:       log,
		Dashboard: ctrl,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", cfg.Version).
		Str("price_source", cfg.PriceSource).
		Strs("symbols", cfg.PriceSymbols).
		Bool("telegram", cfg.TelegramEnabled()).
		Msg("Nexus Terminal initialized")

	ctrl.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return tg.Listen(gctx, ctrl.HandleCommand, ctrl.HandleCallback)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
	}

	sched.Stop()
	lifecycle.Close()
	live.Stop()
	exportSession(cfg.SessionExportFile, ctrl, log)
	log.Info().Msg("Nexus Terminal stopped")
}

func newQuoteSource(name string) market.QuoteSource {
	if name == config.PriceSourceAlpaca {
		return alpaca.NewProvider("")
	}
	return binance.NewSource("")
}

// exportSession writes the final ledger state when a path is configured.
func exportSession(path string, ctrl *dashboard.Controller, log zerolog.Logger) {
	if path == "" {
		return
	}
	e := storage.SessionExport{
		ExportedAt: time.Now(),
		Portfolio:  ctrl.Portfolio(),
	}
	if st := ctrl.Snapshot().Advisory; st.Settled() {
		e.LastSignal = st.Signal
	}
	if err := storage.WriteExport(path, e); err != nil {
		log.Error().Err(err).Str("file", path).Msg("Session export failed")
		return
	}
	log.Info().Str("file", path).Int("positions", len(e.Portfolio.Positions)).Msg("Session exported")
}

// reportPreviousSession logs the last export. Its state is not reloaded.
func reportPreviousSession(path string, log zerolog.Logger) {
	if path == "" {
		return
	}
	prev, err := storage.ReadExport(path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Previous session export unreadable")
		return
	}
	log.Info().
		Str("file", path).
		Time("exported_at", prev.ExportedAt).
		Int("positions", len(prev.Portfolio.Positions)).
		Msg("Previous session export found, starting fresh")
}

func readVersion() string {
	version, err := os.ReadFile(VersionFile)
	if err != nil {
		return "v0.0.0-dev"
	}
	return strings.TrimSpace(string(version))
}
