package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ngbank/aml-compliance/internal/audit"
	"github.com/ngbank/aml-compliance/internal/cache"
	"github.com/ngbank/aml-compliance/internal/casemgmt"
	"github.com/ngbank/aml-compliance/internal/config"
	"github.com/ngbank/aml-compliance/internal/crypto"
	"github.com/ngbank/aml-compliance/internal/customerrisk"
	"github.com/ngbank/aml-compliance/internal/events"
	"github.com/ngbank/aml-compliance/internal/forensics"
	"github.com/ngbank/aml-compliance/internal/metrics"
	"github.com/ngbank/aml-compliance/internal/monitoring"
	"github.com/ngbank/aml-compliance/internal/repository/archive"
	"github.com/ngbank/aml-compliance/internal/repository/elasticsearch"
	"github.com/ngbank/aml-compliance/internal/repository/postgres"
	"github.com/ngbank/aml-compliance/internal/reporting"
	"github.com/ngbank/aml-compliance/internal/rules"
)

// application bundles every wired component so the graceful-shutdown path
// has one place to reach into.
type application struct {
	logger   *zap.Logger
	pool     interface{ Close() }
	consumer *events.TransactionConsumer
	producer *events.LifecycleProducer
	server   *echo.Echo
	cacheCl  *cache.RuleCache
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Info("Starting AML compliance service...")

	encryptor, err := crypto.NewFieldEncryptor(
		cfg.Encryption.EncryptionKeysBase64,
		cfg.Encryption.CurrentKeyVersion,
		cfg.Encryption.AuditHMACSecret,
	)
	if err != nil {
		sugar.Fatalf("failed to initialize encryptor: %v", err)
	}

	pool, err := postgres.NewPool(context.Background(), cfg.Database)
	if err != nil {
		sugar.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	customerRepo := postgres.NewCustomerRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)
	ruleRepo := postgres.NewRuleRepository(pool)
	alertRepo := postgres.NewAlertRepository(pool)
	caseRepo := postgres.NewCaseRepository(pool)
	reportRepo := postgres.NewReportRepository(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	txManager := postgres.NewTxManager(pool)

	esRepo, err := elasticsearch.NewSearchRepository(cfg.Elasticsearch)
	if err != nil {
		sugar.Warnf("elasticsearch unavailable, search indexing disabled: %v", err)
	}

	archiveRepo, err := archive.New(context.Background(), cfg.S3)
	if err != nil {
		sugar.Fatalf("failed to initialize archive repository: %v", err)
	}

	ruleCache := cache.NewRuleCache(cfg.Redis, logger)
	defer ruleCache.Close()

	sink := audit.NewSink(auditRepo, esRepo, encryptor, logger)

	registry := rules.NewRegistry(ruleRepo, transactionRepo, sink, ruleCache)

	reg := prometheus.NewRegistry()
	monitoringMetrics := metrics.NewMonitoring(reg)
	caseMetrics := metrics.NewCaseWorkflow(reg)

	engine := monitoring.NewEngine(customerRepo, transactionRepo, ruleRepo, alertRepo, ruleCache, sink, txManager, monitoringMetrics)
	riskService := customerrisk.NewService(customerRepo, transactionRepo, alertRepo, sink)
	caseService := casemgmt.NewService(caseRepo, alertRepo, sink, caseMetrics)
	reportingService := reporting.NewService(reportRepo, caseRepo, customerRepo, transactionRepo, alertRepo, archiveRepo, sink, cfg.Compliance)
	forensicsService := forensics.NewService(auditRepo, esRepo, archiveRepo, sink)

	_ = registry
	_ = riskService
	_ = caseService
	_ = reportingService
	_ = forensicsService

	consumer, err := events.NewTransactionConsumer(cfg.Kafka, engine, logger)
	if err != nil {
		sugar.Fatalf("failed to create kafka consumer: %v", err)
	}

	producer, err := events.NewLifecycleProducer(cfg.Kafka)
	if err != nil {
		sugar.Fatalf("failed to create kafka producer: %v", err)
	}
	defer producer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sugar.Info("starting kafka transaction consumer loop...")
		if err := consumer.Start(ctx); err != nil {
			sugar.Errorf("kafka consumer failed: %v", err)
		}
	}()
	defer consumer.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Transport/RPC surfaces for the domain operations are out of scope for
	// this core; the HTTP shell exposes only health/readiness and metrics.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	keyData, err := os.ReadFile(cfg.Auth.JWTPublicKeyPath)
	var signingKey interface{}
	if err == nil {
		signingKey, err = jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			sugar.Warnf("failed to parse JWT public key: %v", err)
		}
	} else {
		sugar.Warnf("JWT public key not found at %s: %v", cfg.Auth.JWTPublicKeyPath, err)
	}
	if signingKey != nil {
		echoCfg := echojwt.Config{
			SigningKey:    signingKey,
			SigningMethod: "RS256",
			NewClaimsFunc: func(c echo.Context) jwt.Claims {
				return new(jwt.MapClaims)
			},
		}
		_ = echojwt.WithConfig(echoCfg)
		sugar.Info("JWT public key loaded; verification middleware is not installed on any route")
	} else {
		sugar.Warn("JWT public key missing; principal extraction disabled")
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sugar.Info("shutting down service...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		sugar.Fatal(err)
	}
}
