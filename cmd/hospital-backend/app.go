package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hospital/hospital-backend/internal/config"
	"github.com/hospital/hospital-backend/internal/domain/metrics"
	"github.com/hospital/hospital-backend/internal/domain/patient"
	"github.com/hospital/hospital-backend/internal/platform/auth"
	"github.com/hospital/hospital-backend/internal/platform/awsclient"
	"github.com/hospital/hospital-backend/internal/platform/db"
	"github.com/hospital/hospital-backend/internal/platform/middleware"
	"github.com/hospital/hospital-backend/internal/platform/response"
	"github.com/hospital/hospital-backend/internal/platform/telemetry"
)

const serviceName = "hospital-backend"

// recordStore is a patient repository that can report its own health.
type recordStore interface {
	patient.Repository
	db.Pinger
}

// app holds the process-wide handles built once at startup.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  recordStore
	pool   *pgxpool.Pool
	aws    *awsclient.Clients
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newApp connects the configured record store and the AWS clients it and
// the optional audit queue and report bucket need.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.StoreBackend == config.BackendDynamoDB || cfg.AuditQueueURL != "" || cfg.ReportBucket != "" {
		clients, err := awsclient.New(ctx, awsclient.Options{
			Region:           cfg.AWSRegion,
			DynamoDBEndpoint: cfg.DynamoDBEndpoint,
		})
		if err != nil {
			return nil, err
		}
		a.aws = clients
	}

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.store = patient.NewPGRepository(pool, cfg.PKName)
		logger.Info().Msg("connected to database")
	case config.BackendDynamoDB:
		a.store = patient.NewDynamoRepository(a.aws.DynamoDB, cfg.TableName, cfg.PKName)
		logger.Info().Str("table", cfg.TableName).Str("region", cfg.AWSRegion).Msg("using dynamodb record store")
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return a, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *app) auditRecorder() middleware.AuditRecorder {
	if a.cfg.AuditQueueURL == "" || a.aws == nil {
		return nil
	}
	return middleware.NewSQSRecorder(a.aws.SQS, a.cfg.AuditQueueURL)
}

// authMiddleware picks the identity source for the resolved auth mode.
// Lambda deployments default to trusting the API Gateway authorizer.
func (a *app) authMiddleware() echo.MiddlewareFunc {
	switch a.cfg.ResolvedAuthMode() {
	case config.AuthModeDevelopment:
		a.logger.Warn().Msg("development auth: tokens are not verified and anonymous callers act as dev-user")
		return auth.DevAuthMiddleware(a.cfg.AdminGroupList())
	case config.AuthModeJWT:
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:   a.cfg.Issuer(),
			Audience: a.cfg.AuthAudience,
			JWKSURL:  a.cfg.AuthJWKSURL,
			Skipper:  auth.AuthSkipper,
		})
	default:
		return auth.GatewayMiddleware()
	}
}

// routerOptions are the parts of the router that differ between the HTTP
// server, the Lambda handler and tests.
type routerOptions struct {
	Auth          echo.MiddlewareFunc
	Audit         middleware.AuditRecorder
	ExposeMetrics bool
}

func newRouter(cfg *config.Config, logger zerolog.Logger, store recordStore, pool *pgxpool.Pool, opts routerOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = response.ErrorHandler(logger)

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.ResponseHeaders(cfg.AllowedOrigin))
	e.Use(telemetry.Middleware())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if opts.Auth != nil {
		e.Use(opts.Auth)
	}
	e.Use(middleware.Audit(logger, opts.Audit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": serviceName,
			"version": cfg.ServiceVersion,
		})
	})
	e.GET("/health/db", db.HealthHandler(cfg.StoreBackend, store, pool))
	if opts.ExposeMetrics {
		e.GET("/metrics", echo.WrapHandler(telemetry.Handler()))
	}

	patientSvc := patient.NewService(store)
	patient.NewHandler(patientSvc, patient.HandlerConfig{
		KeyAttribute:    cfg.PKName,
		RecordKeyClaim:  cfg.RecordKeyClaim,
		ProfileKeyClaim: cfg.ProfileKeyClaim,
	}).RegisterRoutes(e)

	metrics.NewHandler(metrics.NewService(patientSvc), cfg.AdminGroupList()).RegisterRoutes(e)

	return e
}
