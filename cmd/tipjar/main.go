package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/canhamzacode/tipjar/internal/auth"
	"github.com/canhamzacode/tipjar/internal/bot"
	"github.com/canhamzacode/tipjar/internal/cache"
	"github.com/canhamzacode/tipjar/internal/config"
	"github.com/canhamzacode/tipjar/internal/directory"
	"github.com/canhamzacode/tipjar/internal/hedera"
	"github.com/canhamzacode/tipjar/internal/http_api"
	"github.com/canhamzacode/tipjar/internal/metrics"
	"github.com/canhamzacode/tipjar/internal/repository"
	"github.com/canhamzacode/tipjar/internal/transfer"
	"github.com/canhamzacode/tipjar/internal/twitter"
	"github.com/canhamzacode/tipjar/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "tipjar",
		Usage: "Tipjar turns social mentions into Hedera tips",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
			&cli.StringFlag{Name: "hedera-network", Aliases: []string{"n"}, Usage: "Hedera network (mainnet, testnet, previewnet)"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Process mentions without posting replies"},
		},
		Action: func(c *cli.Context) error {
			return run(c)
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}
	if c.IsSet("hedera-network") {
		cfg.HederaNetwork = c.String("hedera-network")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("dry-run") {
		cfg.DryRun = c.Bool("dry-run")
	}

	// Initialize logger
	appLogger, err := logger.NewLogger(cfg.Development)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	m := metrics.Registry("tipjar")

	// Initialize database
	db, err := repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, appLogger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %v", err)
	}
	defer func() { _ = db.Close() }()

	// Optional Redis-backed user cache
	var userCache *cache.Redis
	if cfg.RedisAddr != "" {
		userCache = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, appLogger)
		if err := userCache.Ping(context.Background()); err != nil {
			appLogger.Warn("redis unreachable, continuing without user cache: ", err)
			userCache = nil
		} else {
			defer func() { _ = userCache.Close() }()
		}
	}

	// Initialize ledger service
	ledger, err := hedera.NewService(hedera.Config{
		Network:     cfg.HederaNetwork,
		OperatorID:  cfg.HederaOperatorID,
		OperatorKey: cfg.HederaOperatorKey,
		NodeAccount: cfg.HederaNodeAccount,
	}, appLogger, m)
	if err != nil {
		return fmt.Errorf("failed to initialize hedera service: %v", err)
	}
	defer func() { _ = ledger.Close() }()

	// Core services
	dir := directory.New(db, userCache, appLogger)
	transfers := transfer.New(db, ledger, dir, appLogger, m, cfg.ReconcileMode)
	authManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)

	// Mention ingestion worker
	feed := twitter.NewClient(twitter.Config{
		BaseURL:     cfg.TwitterAPIBaseURL,
		BearerToken: cfg.TwitterBearerToken,
		BotUserID:   cfg.TwitterBotUserID,
	}, appLogger)
	limiter := bot.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.RateLimitBackoff)
	worker := bot.NewWorker(bot.Config{
		PollInterval: cfg.PollInterval,
		BatchSize:    cfg.MentionBatchSize,
		DryRun:       cfg.DryRun,
		AppURL:       cfg.AppURL,
		BotUsername:  cfg.TwitterBotUsername,
	}, db, feed, transfers, limiter, appLogger, m)

	// Initialize API server
	apiServer := http_api.NewHTTPServer(dir, transfers, ledger, authManager, cfg.APIPort, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker.Start(ctx)
	go apiServer.Start()

	appLogger.Info("tipjar started")
	<-ctx.Done()

	appLogger.Info("shutting down...")
	worker.Stop()
	if err := apiServer.Shutdown(); err != nil {
		appLogger.Error("shutdown error: ", err)
	}

	return nil
}
