package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/quicksheet-ai/quicksheet/constants"
	"github.com/quicksheet-ai/quicksheet/internal/common"
	"github.com/quicksheet-ai/quicksheet/internal/export"
	"github.com/quicksheet-ai/quicksheet/internal/llm"
	"github.com/quicksheet-ai/quicksheet/internal/llm/gemini"
	"github.com/quicksheet-ai/quicksheet/internal/pipeline"
	"github.com/quicksheet-ai/quicksheet/internal/quota"
	"github.com/quicksheet-ai/quicksheet/internal/repository"
	"github.com/quicksheet-ai/quicksheet/internal/server"
)

func main() {
	fs := ff.NewFlagSet("quicksheetd")
	var (
		addr        = fs.StringLong("addr", ":8080", "HTTP listen address")
		dbPath      = fs.StringLong("db", "quicksheet.db", "Ledger database file path")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		llmTimeout  = fs.DurationLong("llm-timeout", 60*time.Second, "Per-attempt model call timeout")
		llmRetries  = fs.IntLong("llm-attempts", 3, "Max attempts per model call")
		concurrency = fs.IntLong("llm-concurrency", 4, "Parallel per-image model calls")
		freeLimit   = fs.IntLong("free-tier-limit", constants.FreeTierLimit, "Free-tier extraction image-unit cap")
		maxUpload   = fs.IntLong("max-upload-mb", 50, "Max upload size in MB")
		adminUser   = fs.StringLong("admin-user", "", "Basic auth username for admin endpoints (optional)")
		adminPass   = fs.StringLong("admin-pass", "", "Basic auth password for admin endpoints (optional)")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("QUICKSHEET"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}

	cfg := &common.Config{
		Server: common.ServerConfig{
			Addr:            *addr,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  int64(*maxUpload) << 20,
			AdminUser:       *adminUser,
			AdminPass:       *adminPass,
		},
		Database: common.DatabaseConfig{Path: *dbPath},
		LLM: common.LLMConfig{
			APIKey:      apiKey,
			Model:       *geminiModel,
			Timeout:     *llmTimeout,
			MaxAttempts: *llmRetries,
			Concurrency: *concurrency,
		},
		Quota: common.QuotaConfig{FreeTierLimit: *freeLimit},
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		logger.Error("failed to open ledger database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close ledger database", "error", err)
		}
	}()
	accounts := repository.NewAccountRepository(db, logger)

	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Timeout:     cfg.LLM.Timeout,
		MaxAttempts: cfg.LLM.MaxAttempts,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize gemini client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close gemini client", "error", err)
		}
	}()

	gate := quota.NewGate(cfg.Quota.FreeTierLimit)
	exporter := export.NewService(logger)
	processor := pipeline.NewProcessor(gate, client, exporter, accounts, cfg.LLM.Concurrency, logger)
	editAgent := llm.NewEditAgent(client, logger)

	srv := server.New(cfg.Server, accounts, processor, editAgent, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}
