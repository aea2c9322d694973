package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/completion"
	"github.com/bhuvanesh-bit/scriptbot/internal/config"
	"github.com/bhuvanesh-bit/scriptbot/internal/database"
	"github.com/bhuvanesh-bit/scriptbot/internal/handler"
	"github.com/bhuvanesh-bit/scriptbot/internal/logging"
	"github.com/bhuvanesh-bit/scriptbot/internal/queue"
	"github.com/bhuvanesh-bit/scriptbot/internal/render"
	"github.com/bhuvanesh-bit/scriptbot/internal/repository"
	"github.com/bhuvanesh-bit/scriptbot/internal/router"
	"github.com/bhuvanesh-bit/scriptbot/internal/service"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read .env")
	}
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.WithError(err).Fatal("migrations failed")
	}

	var sessions session.Store
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		sessions = session.NewRedisStore(rdb, cfg.SessionPrefix, cfg.SessionTTL())
		logger.Info("sessions stored in redis")
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL())
		logger.Warn("redis unavailable; sessions kept in memory")
	}

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.EventsEnabled {
		events = queue.NewPublisher(cfg.AMQPURL, logger)
		consumer := queue.NewConsumer(cfg.AMQPURL, "logs", logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Warn("history consumer stopped")
			}
		}()
	}

	llm := completion.NewOpenAIClient(completion.Options{
		APIKey:      cfg.OpenAIKey,
		Model:       cfg.OpenAIModel,
		BaseURL:     cfg.OpenAIBaseURL,
		Temperature: cfg.OpenAITemperature,
		Timeout:     cfg.CompletionTimeout,
		Logger:      logger,
	})

	chat := service.NewChatService(service.Deps{
		Users:      repository.NewUserRepo(db, cfg.BcryptCost),
		History:    repository.NewHistoryRepo(db),
		Completion: llm,
		Sessions:   sessions,
		Events:     events,
		Logger:     logger,
	})

	renderer, err := render.NewRenderer()
	if err != nil {
		logger.WithError(err).Fatal("templates")
	}

	e := echo.New()
	e.HideBanner = true
	e.Renderer = renderer
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(logging.RequestLogger(logger))

	auth := handler.NewAuthHandler(cfg, chat, logger)
	router.RegisterRoutes(e, db, logger)
	router.RegisterAuth(e, auth, cfg.JWTSecret)
	router.RegisterChat(e, handler.NewChatHandler(chat, logger), cfg.JWTSecret)
	router.RegisterWeb(e, handler.NewWebHandler(cfg, auth, chat, logger), cfg.JWTSecret)

	addr := ":" + cfg.Port
	logger.WithFields(log.Fields{"addr": addr, "env": cfg.Env, "model": llm.Model()}).Info("listening")

	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown")
	}
}
