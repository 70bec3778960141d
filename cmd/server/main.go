package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/partner-portal/internal/app"
	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/handler"
	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/middleware"
	"github.com/iliyamo/partner-portal/internal/mural"
	"github.com/iliyamo/partner-portal/internal/queue"
	"github.com/iliyamo/partner-portal/internal/recordstore"
	"github.com/iliyamo/partner-portal/internal/repository"
	"github.com/iliyamo/partner-portal/internal/router"
	"github.com/iliyamo/partner-portal/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = zapLog.Sync() }()
	log := logger.NewZapAdapter(zapLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, closeStore, err := app.OpenRegistry(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("record store init failed", zap.Error(err))
	}
	defer closeStore()
	log.Info("record store ready", map[string]interface{}{
		"driver":       cfg.Store.Driver,
		"product_base": recordstore.Redact(cfg.Store.ProductBase),
		"agency_base":  recordstore.Redact(cfg.Store.AgencyBase),
	})

	// Events are optional: without a broker the portal publishes nowhere.
	var events service.Publisher = service.NopPublisher{}
	evCfg := config.LoadEventsConfig()
	if evCfg.Enabled {
		pub := service.NewAMQPPublisher(evCfg.URL, log)
		defer func() { _ = pub.Close() }()
		events = pub

		consumer := &queue.Consumer{
			URL:    evCfg.URL,
			Queues: []string{queue.ReservationCreatedQueue, queue.NoticeReadQueue},
			Dir:    evCfg.LogDir,
			Log:    log.With(map[string]interface{}{"component": "event-consumer"}),
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("event consumer stopped", nil)
			}
		}()
	}

	tracker := mural.NewTracker(
		repository.NewNoticeRepo(reg, cfg.Store.ProductBase, cfg.Tables.Mural, cfg.Tables.MuralLegacy, log),
		repository.NewReadLogRepo(reg, cfg.Store.ProductBase, cfg.Tables.ReadLog),
		log,
	)
	portal := service.New(service.Options{
		Agencies:     repository.NewAgencyRepo(reg, cfg.Store.AgencyBase, cfg.Tables.Agencies),
		Products:     repository.NewProductRepo(reg, cfg.Store.ProductBase, cfg.Tables.Products, log),
		Reservations: repository.NewReservationRepo(reg, cfg.Store.ReservBase, cfg.Tables.Reservations),
		Tracker:      tracker,
		Events:       events,
		Log:          log,
		Brand:        cfg.Brand,
	})

	// Redis is optional: without it the cache and the rate limiter pass through.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable, cache and rate limiting disabled", nil)
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e)
	router.RegisterPortal(e, handler.NewPortalHandler(portal, log, cfg.Timeout), router.PortalDeps{
		JWTSecret: cfg.JWTSecret,
		JWTIssuer: cfg.JWTIssuer,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Log:       log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", map[string]interface{}{"addr": addr, "env": cfg.Env})
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed", nil)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed", nil)
	}
	log.Info("server stopped", nil)
}
