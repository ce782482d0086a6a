package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"parksign-service/internal/config"
	"parksign-service/internal/db"
	"parksign-service/internal/gemini"
	"parksign-service/internal/geo"
	apphttp "parksign-service/internal/http"
	"parksign-service/internal/report"
	"parksign-service/internal/repository"
	"parksign-service/internal/service"
	"parksign-service/internal/storage"
	"parksign-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log)
	log.Info().Str("port", cfg.Server.Port).Msg("starting parksign service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	localStore, err := store.Open(ctx, cfg.Store.Path, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open local store")
	}
	defer localStore.Close()

	// Cloud side is optional: without a DSN the service runs local-only
	// and profile sync / report persistence degrade gracefully.
	var cloudRepo *repository.CloudRepository
	if cfg.Database.DSN != "" {
		gdb, err := db.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open cloud database")
		}
		cloudRepo = repository.NewCloudRepository(gdb)
		log.Info().Msg("cloud database connected")
	} else {
		log.Info().Msg("no cloud database configured, running local-only")
	}

	var uploader *storage.Uploader
	if cfg.S3.Endpoint != "" || cfg.S3.AccessKey != "" {
		uploader, err = storage.NewUploader(ctx, storage.Config{
			Region:        cfg.S3.Region,
			Endpoint:      cfg.S3.Endpoint,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init object store")
		}
	}

	var locator geo.Locator
	if cfg.Geo.Endpoint != "" {
		locator = geo.NewHTTPLocator(cfg.Geo.Endpoint)
	}

	interpreter := gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, log)

	var cloud service.CloudSync
	if cloudRepo != nil {
		cloud = cloudRepo
	}
	session := service.NewSession(ctx, localStore, interpreter, locator, cloud, log)

	var pipeline *report.Pipeline
	if cloudRepo != nil {
		var notifier report.Notifier
		if cfg.Email.Endpoint != "" {
			notifier = report.NewEmailClient(cfg.Email.Endpoint, cfg.Email.AccessKey, cfg.Email.FromName)
		}
		var objectStore report.ObjectUploader
		if uploader != nil {
			objectStore = uploader
		}
		pipeline = report.NewPipeline(objectStore, cloudRepo, notifier, log)
	}

	if strings.ToLower(cfg.Log.Level) != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := apphttp.NewHandler(session, pipeline, log)
	handler.Register(router, apphttp.JWTAuth(cfg.Auth.JWTSecret, log))

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()
	log.Info().Str("addr", srv.Addr).Msg("listening")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
