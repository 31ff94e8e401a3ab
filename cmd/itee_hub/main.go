package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/iteehub/itee_hub/internal/config"
	"github.com/iteehub/itee_hub/internal/delivery"
	"github.com/iteehub/itee_hub/internal/downloader"
	"github.com/iteehub/itee_hub/internal/logctx"
	"github.com/iteehub/itee_hub/internal/notifier"
	"github.com/iteehub/itee_hub/internal/scrape"
	"github.com/iteehub/itee_hub/internal/storage/sqlite"
	"github.com/iteehub/itee_hub/internal/telemetry"
)

type runOptions struct {
	Refresh         bool
	UpdateQuestions bool
	UpdateResults   bool
	NotifyChatID    string
}

var opts runOptions

var rootCmd = &cobra.Command{
	Use:   "itee_hub",
	Short: "Sync ITPEC exam archives and deliver new files to Telegram",
	RunE:  runRoot,
}

func init() {
	rootCmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Refresh already downloaded files by checking remote changes")
	rootCmd.Flags().BoolVar(&opts.UpdateQuestions, "update-questions", false, "Update the FE and IP question archives")
	rootCmd.Flags().BoolVar(&opts.UpdateResults, "update-results", false, "Update exam result sheets")
	rootCmd.Flags().StringVar(&opts.NotifyChatID, "notify", "", "Send pending files to the given Telegram chat")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func runRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := slog.New(logctx.NewTraceHandler(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("itee hub starting...", "log_level", cfg.LogLevel, "data_dir", cfg.DataDir)

	return run(logctx.WithLogger(ctx, logger), cfg, opts)
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Database
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("DB error: %w", err)
	}
	defer database.Close()

	repo := sqlite.NewInstrumentedArchiveRepository(database, tel)

	// =========================================================================
	// Start Downloader
	httpClient := resty.New().SetTimeout(cfg.HTTPTimeout)
	scraper := scrape.NewClient(cfg.HTTPTimeout)
	dl := downloader.New(repo, httpClient, scraper, cfg.DataDir, tel)

	// =========================================================================
	// Run Batch
	if opts.UpdateQuestions {
		for _, pageURL := range []string{cfg.FEQuestionsURL, cfg.IPQuestionsURL} {
			logger.Info("updating questions", "page", pageURL, "refresh", opts.Refresh)

			if err := dl.SyncQuestions(ctx, pageURL, opts.Refresh); err != nil {
				logger.Error("failed to sync questions", "page", pageURL, "err", err)
			}
		}
	}

	if opts.UpdateResults {
		logger.Info("updating results", "page", cfg.ResultsURL, "refresh", opts.Refresh)

		if err := dl.SyncResults(ctx, cfg.ResultsURL, opts.Refresh); err != nil {
			logger.Error("failed to sync results", "page", cfg.ResultsURL, "err", err)
		}
	}

	if opts.NotifyChatID != "" {
		if cfg.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
		}

		bot := notifier.NewTelegramClient(cfg.TelegramBotToken, cfg.HTTPTimeout)
		deliverer := delivery.New(repo, bot, cfg.DataDir, cfg.SendPause, tel)

		if err := deliverer.Deliver(ctx, opts.NotifyChatID); err != nil {
			return fmt.Errorf("delivery failed: %w", err)
		}
	}

	return nil
}
