package main

import (
	"context"
	"fmt"
	"log"

	"github.com/getwarden/warden"
	"github.com/getwarden/warden/acl"
	"github.com/getwarden/warden/api"
	"github.com/getwarden/warden/audit"
	"github.com/getwarden/warden/config"
	"github.com/getwarden/warden/logger"
	"github.com/getwarden/warden/telemetry"
	"github.com/getwarden/warden/wgorm"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Log.Sync()

	logger.Log.Info("Starting Warden ACL Service",
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBType),
	)

	repo, err := wgorm.Open(cfg.DBType, cfg.DSN, nil, cfg.SkipAutoMigrate)
	if err != nil {
		logger.Log.Fatal("failed to initialize storage", zap.Error(err))
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.Enabled = cfg.TelemetryEnabled
	tel, err := telemetry.NewProvider(tcfg)
	if err != nil {
		logger.Log.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer tel.Shutdown(context.Background())

	opts := []acl.ManagerOption{
		acl.WithLogger(logger.Log),
		acl.WithMetrics(tel),
		acl.WithStrategyCacheSize(cfg.StrategyCache),
	}
	if cfg.AuditEnabled {
		auditor := warden.NewDefaultAuditLogger(repo.DB(), audit.Hooks{
			IDGenerator: uuid.NewString,
		})
		opts = append(opts, acl.WithAudit(auditor))
	}

	manager := warden.NewDefaultManager(repo.DB(), opts...)

	h := api.NewHandler(manager)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	g := e.Group("/api/v1")
	h.RegisterRoutes(g)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Log.Info("Server is starting", zap.Int("port", cfg.Port))
	if err := e.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		logger.Log.Fatal("server failed to start", zap.Error(err))
	}
}
