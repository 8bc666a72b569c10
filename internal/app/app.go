package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"issueboard/internal/config"
	"issueboard/internal/digest"
	"issueboard/internal/fusion"
	"issueboard/internal/httpx"
	slackint "issueboard/internal/integrations/slack"
	"issueboard/internal/logging"
	"issueboard/internal/server"
	"issueboard/internal/storage/sqlite"
)

func Main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using process environment")
	}

	cfg := config.LoadConfig()
	if err := logging.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.Fatalf("Failed to init logging: %v", err)
	}
	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Infof(
		"Config loaded. Datasheet=%s View=%s FieldKey=%s PageSize=%d ProductLine=%q MinCount=%d Timezone=%s Digest=%q LLM=%q ExternalHTTPTimeout=%s",
		cfg.FusionDatasheetID,
		cfg.FusionViewID,
		cfg.FusionFieldKey,
		cfg.FusionPageSize,
		cfg.ProductLine(),
		cfg.DefaultMinCount,
		cfg.Timezone,
		cfg.DigestSchedule,
		cfg.LLMProvider,
		appliedHTTPTimeout,
	)

	db, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	log.Infof("Database initialized at %s", cfg.DBPath)
	defer db.Close()

	if err := os.MkdirAll(cfg.ReportOutputDir, 0755); err != nil {
		log.Fatalf("Failed to create report output dir: %v", err)
	}
	log.Infof("Report output dir: %s", cfg.ReportOutputDir)

	client, err := fusion.NewClient(cfg, httpx.ExternalHTTPClient())
	if err != nil {
		log.Fatalf("Failed to init datasheet client: %v", err)
	}

	poster := slackint.NewPoster(cfg.SlackBotToken, cfg.ReportChannelID)
	if poster.Enabled() {
		log.Infof("Slack digest delivery enabled channel=%s", cfg.ReportChannelID)
	}

	deps := digest.Deps{
		Config: cfg,
		Source: client,
		DB:     db,
		Slack:  poster,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	digest.StartScheduler(ctx, deps)

	runner := func(ctx context.Context, now time.Time) (digest.Result, error) {
		return digest.Run(ctx, deps, now.In(cfg.Location), sqlite.TriggerManual)
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.New(cfg, client, db, runner).Router(),
	}

	go func() {
		log.Infof("Ticket API running at http://%s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("HTTP server shutdown")
	}
}
