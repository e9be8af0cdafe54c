package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"repo-pretrade/internal/api"
	"repo-pretrade/internal/auditlog"
	"repo-pretrade/internal/calendar"
	"repo-pretrade/internal/engine"
	"repo-pretrade/internal/engine/engineobs"
	"repo-pretrade/internal/fetcher"
	"repo-pretrade/internal/fetcher/fetcherobs"
	"repo-pretrade/internal/interfaces"
	"repo-pretrade/internal/iss"
	"repo-pretrade/internal/logger"
	"repo-pretrade/internal/refcache"
	"repo-pretrade/internal/resolver"
	"repo-pretrade/internal/resolver/resolverobs"
	"repo-pretrade/internal/store"
	"repo-pretrade/internal/trace"
	"repo-pretrade/internal/types"
)

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// shutdownSystem runs on a fresh context: the command's own may already be
// cancelled by a signal.
func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	logger.Sync()
}

func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath)
		return nil, err
	}
	return cfg, nil
}

// services is the wired pipeline shared by every subcommand.
type services struct {
	cfg      *store.Config
	engine   interfaces.Engine
	calendar interfaces.CalendarBuilder
}

func initializeServices(ctx context.Context, cfg *store.Config) *services {
	retry := &api.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		InitialWait: time.Duration(cfg.Retry.InitialWaitMs) * time.Millisecond,
		MaxWait:     time.Duration(cfg.Retry.MaxWaitMs) * time.Millisecond,
		Statuses:    cfg.Retry.Statuses,
	}
	limiter := api.NewRateLimiter(cfg.ISS.RateLimit.MaxTokens, time.Duration(cfg.ISS.RateLimit.RefillMs)*time.Millisecond)

	opts := []api.ClientOption{
		api.WithBaseURL(cfg.ISS.BaseURL),
		api.WithTimeout(cfg.Timeout()),
		api.WithRetry(retry),
		api.WithRateLimiter(limiter),
		api.WithLogging(logger.IsDebugEnabled()),
	}
	for k, v := range api.ISSHeaders(cfg.ISS.UserAgent) {
		opts = append(opts, api.WithHeader(k, v))
	}
	httpClient := api.NewClient(opts...)
	src := iss.NewClient(httpClient,
		iss.WithUserAgent(cfg.ISS.UserAgent),
		iss.WithBoardTimeout(cfg.BoardTimeout()),
		iss.WithBoardLimiter(limiter),
		iss.WithBoardRetry(retry),
	)

	boards := refcache.NewBoards(src, cfg.Boards, cfg.CacheTTL(), cfg.NegativeTTL(), time.Now)
	loc := cfg.Location()
	today := func() types.Date { return types.DateOf(time.Now().In(loc)) }

	res := resolverobs.Wrap(resolver.New(src, boards))
	fet := fetcherobs.Wrap(fetcher.New(src, boards, fetcher.WithToday(today)))

	var engOpts []engine.Option
	engOpts = append(engOpts, engine.WithToday(today))
	issuerClient := api.NewClient(api.WithTimeout(cfg.Timeout()), api.WithRetry(retry),
		api.WithHeader("User-Agent", cfg.ISS.UserAgent))
	if dir := refcache.NewIssuers(issuerClient, cfg.Issuers.URL, cfg.CacheTTL(), cfg.NegativeTTL(), time.Now); dir != nil {
		engOpts = append(engOpts, engine.WithIssuers(dir))
	} else {
		logger.Debug(ctx, "Issuer directory disabled")
	}

	if audit := auditlog.New(cfg.Audit.Dir, loc); audit != nil {
		if err := audit.CompressOlder(cfg.Audit.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old audit logs", "error", err)
		}
		engOpts = append(engOpts, engine.WithAuditLog(audit))
	}

	logger.Info(ctx, "Pipeline initialized",
		"iss", cfg.ISS.BaseURL,
		"boards", boards.Names(),
		"workers", cfg.Workers,
		"timezone", cfg.Timezone,
	)

	return &services{
		cfg:    cfg,
		engine: engineobs.Wrap(engine.New(cfg, res, fet, engOpts...)),
		calendar: calendar.NewBuilder(res, fet,
			calendar.WithWorkers(cfg.Workers),
			calendar.WithToday(today),
		),
	}
}
