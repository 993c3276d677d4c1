package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wardenlabs/askwarden/internal/biz/domain"
	"github.com/wardenlabs/askwarden/internal/biz/usecase"
	"github.com/wardenlabs/askwarden/internal/conf"
	"github.com/wardenlabs/askwarden/internal/data"
	"github.com/wardenlabs/askwarden/internal/infra/lark"
	"github.com/wardenlabs/askwarden/internal/infra/openai"
	"github.com/wardenlabs/askwarden/internal/server"
	"github.com/wardenlabs/askwarden/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration; bad config is fatal before the event loop
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	// Initialize clients; the transport logger is noisy, keep it at
	// warn unless debugging
	larkLog := logger.Named("lark")
	if !cfg.Debug {
		larkLog = larkLog.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
	}
	larkClient := lark.NewClient(cfg.Lark.AppID, cfg.Lark.AppSecret, larkLog)
	genClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)

	guild := domain.Guild{ID: cfg.Lark.AppID, Name: cfg.Lark.WorkspaceName}

	// Initialize repository layer
	repos, err := data.NewRepositories(
		larkClient,
		genClient,
		cfg.Audit.DBPath,
		cfg.Audit.ExportPath,
		cfg.Policy.ExportTimezone,
		guild,
		cfg.Policy.Roles,
	)
	if err != nil {
		logger.Fatal("failed to create repositories", zap.Error(err))
	}

	logger.Info("audit store ready",
		zap.String("db", cfg.Audit.DBPath),
		zap.String("export", cfg.Audit.ExportPath))

	// Initialize usecase layer
	cache, err := usecase.NewResponseCache(cfg.CacheSize)
	if err != nil {
		logger.Fatal("failed to create response cache", zap.Error(err))
	}
	deduper := usecase.NewWarningDeduper(repos.Chat, cfg.Policy.NoticeLookback, logger.Named("deduper"))
	ctl := usecase.NewMessageLifecycleController(
		repos.Chat,
		repos.Audit,
		repos.Snapshot,
		repos.Generator,
		cache,
		deduper,
		cfg.Policy.ToLifecycleConfig(),
		logger.Named("lifecycle"),
	)

	// Initialize cleanup scheduler
	scheduler := service.NewCleanupScheduler(
		repos.Chat,
		cfg.Policy.DesignatedChannel,
		time.Duration(cfg.CleanupMinutes)*time.Minute,
		logger.Named("cleanup"),
	)

	// Initialize gateway server
	srv := server.NewGateway(larkClient, repos.Chat, ctl, scheduler, guild, logger.Named("gateway"))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("received termination signal, shutting down")
		srv.Stop()
		if err := repos.Audit.Close(); err != nil {
			logger.Error("failed to close audit store", zap.Error(err))
		}
		_ = logger.Sync()
		os.Exit(0)
	}()

	logger.Info("starting askwarden gateway",
		zap.String("designated_channel", cfg.Policy.DesignatedChannel),
		zap.Int("cleanup_minutes", cfg.CleanupMinutes))
	if err := srv.Start(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// buildLogger builds the production logger writing to stderr and the
// configured log file
func buildLogger(cfg *conf.Config) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stderr", cfg.LogPath}
	if cfg.Debug {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return logCfg.Build()
}
