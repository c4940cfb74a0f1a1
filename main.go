package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/database"
	"github.com/yeremiapane/restaurant-pos/messaging"
	"github.com/yeremiapane/restaurant-pos/router"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

func main() {
	cfg := config.Load()
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize DB
	db, err := config.InitDB(cfg)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		utils.ErrorLogger.Fatalf("Failed to migrate: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Broker is optional: without AMQP_URL events are dropped and polls run inline.
	var (
		events    messaging.EventPublisher = messaging.NoopPublisher{}
		jobs      messaging.JobQueue
		publisher *messaging.Publisher
		conn      *messaging.Connection
	)
	if cfg.AMQPURL != "" {
		conn, err = messaging.Dial(ctx, cfg.AMQPURL)
		if err != nil {
			utils.ErrorLogger.Fatalf("Failed to connect to broker: %v", err)
		}
		defer conn.Close()
		publisher = messaging.NewPublisher(conn)
		events = publisher
		jobs = publisher
	}

	clients := services.NewPlatformClients(cfg)
	for name := range cfg.Platforms {
		if _, ok := clients[name]; !ok {
			utils.ErrorLogger.Warnf("platform %s is not configured, sync disabled", name)
		}
	}
	container := services.NewContainer(db, events, clients)

	if conn != nil {
		consumer := messaging.NewConsumer(conn, messaging.SyncJobQueue, "pos-sync-worker", 1)
		go func() {
			if err := consumer.Run(ctx, messaging.SyncJobHandler(container.PlatformSync.HandleSyncJob)); err != nil {
				utils.ErrorLogger.Errorf("sync consumer stopped: %v", err)
			}
		}()
	}

	if cfg.PlatformPollInterval > 0 {
		poller := services.NewPoller(db, container.PlatformSync, jobs, cfg.PlatformPollInterval)
		poller.Start()
		defer poller.Stop()
		utils.InfoLogger.Infof("Polling delivery platforms every %s", cfg.PlatformPollInterval)
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	r := router.SetupRouter(db, cfg, tokens, container)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.InfoLogger.Infof("Listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.ErrorLogger.Fatal(err)
		}
	}()

	<-ctx.Done()
	utils.InfoLogger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.ErrorLogger.Errorf("Server shutdown: %v", err)
	}
}
