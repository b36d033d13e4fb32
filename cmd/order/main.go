package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/kiosk_order/internal/config"
	"github.com/Skotchmaster/kiosk_order/internal/events"
	"github.com/Skotchmaster/kiosk_order/internal/gateway"
	"github.com/Skotchmaster/kiosk_order/internal/httpserver"
	"github.com/Skotchmaster/kiosk_order/internal/loyalty"
	"github.com/Skotchmaster/kiosk_order/internal/metrics"
	"github.com/Skotchmaster/kiosk_order/internal/models"
	"github.com/Skotchmaster/kiosk_order/internal/mykafka"
	"github.com/Skotchmaster/kiosk_order/internal/rabbit"
	"github.com/Skotchmaster/kiosk_order/internal/repo"
	"github.com/Skotchmaster/kiosk_order/internal/service"
	"github.com/Skotchmaster/kiosk_order/pkg/authclient"
	pkgdb "github.com/Skotchmaster/kiosk_order/pkg/db"
	"github.com/Skotchmaster/kiosk_order/pkg/logging"
	"github.com/Skotchmaster/kiosk_order/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/kiosk_order/pkg/middleware/logging"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("warning: could not load .env: %v", err)
	}

	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db open: %v", err)
	}

	r := &repo.GormRepo{DB: db}
	if err := r.AutoMigrate(models.Owned()...); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if cfg.AutoMigrate {
		if err := r.AutoMigrate(models.External()...); err != nil {
			log.Fatalf("migrate catalog: %v", err)
		}
	}

	ledger, err := loyalty.NewLedger(cfg.PointRate)
	if err != nil {
		log.Fatalf("POINT_RATE: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.ServiceName, reg)

	var gw gateway.Gateway
	if cfg.TossSecretKey != "" {
		gw = gateway.NewTossClient(cfg.TossAPIURL, cfg.TossSecretKey, cfg.GatewayTimeout)
	} else {
		logger.Warn("toss_disabled", "reason", "TOSS_SECRET_KEY is empty")
	}

	payments := &service.PaymentService{Repo: r, Gateway: gw, Ledger: ledger, Metrics: m}
	orders := &service.OrderService{
		Repo:     r,
		Payments: payments,
		Ledger:   ledger,
		Clock:    service.Clock{Now: time.Now, Loc: cfg.Location},
		Metrics:  m,
	}
	cancels := &service.CancelService{Repo: r, Gateway: gw, Ledger: ledger, Metrics: m}
	admin := &service.AdminService{Repo: r}

	pub, closePub, err := publisher(cfg)
	if err != nil {
		log.Fatalf("event broker: %v", err)
	}
	defer closePub()

	relay := &events.Relay{
		DB:      db,
		Pub:     pub,
		Batch:   cfg.OutboxBatch,
		Poll:    cfg.OutboxPoll,
		Metrics: m,
		Logger:  logger.With("component", "outbox_relay"),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Secure())
	e.Use(echomw.RequestID())
	e.Use(m.Middleware())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: !slices.Contains(cfg.CORSOrigins, "*"),
	}))

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure

	var ac *authclient.Client
	if cfg.AuthHTTPURL != "" {
		ac = authclient.NewClient(cfg.AuthHTTPURL)
	}

	httpserver.Register(e, &httpserver.Deps{
		OrderHandler:    &httpserver.OrderHTTP{Orders: orders, Cancels: cancels},
		PaymentHandler:  &httpserver.PaymentHTTP{Svc: payments},
		AdminHandler:    &httpserver.AdminHTTP{Svc: admin},
		Metrics:         m,
		Ready:           r.Ping,
		JWTSecret:       cfg.JWTAccessSecret,
		AuthClient:      ac,
		InsecureCookies: !cfg.CookieSecure,
		CSRF:            &csrfCfg,
	})

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("stopped_with_error", "error", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info("order service stopped")
}

// publisher picks the outbox sink named by EVENT_BROKER.
func publisher(cfg config.ServiceConfig) (events.Publisher, func(), error) {
	switch cfg.EventBroker {
	case "kafka":
		p, err := mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	case "rabbitmq":
		p, err := rabbit.Connect(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	}
	return events.Discard{}, func() {}, nil
}
