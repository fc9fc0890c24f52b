package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/spf13/cobra"

	"github.com/hospital/hospital-backend/internal/config"
	"github.com/hospital/hospital-backend/internal/domain/metrics"
	"github.com/hospital/hospital-backend/internal/domain/patient"
	"github.com/hospital/hospital-backend/internal/platform/blobstore"
	"github.com/hospital/hospital-backend/internal/platform/db"
	"github.com/hospital/hospital-backend/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "hospital-backend",
		Short: "Patient record and admin metrics API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(lambdaCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve API Gateway HTTP API events as an AWS Lambda function",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLambda()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newRouter(cfg, logger, a.store, a.pool, routerOptions{
		Auth:          a.authMiddleware(),
		Audit:         a.auditRecorder(),
		ExposeMetrics: true,
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// runLambda serves the same router behind API Gateway. Metrics are not
// exposed because nothing scrapes a Lambda instance.
func runLambda() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	e := newRouter(cfg, logger, a.store, a.pool, routerOptions{
		Auth:  a.authMiddleware(),
		Audit: a.auditRecorder(),
	})

	logger.Info().Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting lambda handler")
	lambda.Start(httpadapter.NewV2(e).ProxyWithContext)
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres record store",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				fmt.Println("Running migrations")
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withMigrator(dir, func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func withMigrator(dir string, fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to run migrations")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}
	return fn(ctx, db.NewMigrator(pool, fsys))
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Produce offline admin reports",
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Compute the admin overview and upload it to the report bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			minAge, _ := cmd.Flags().GetString("min-age")
			maxAge, _ := cmd.Flags().GetString("max-age")
			toStdout, _ := cmd.Flags().GetBool("stdout")

			bounds, err := boundsFromFlags(minAge, maxAge)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.ReportBucket == "" && !toStdout {
				return fmt.Errorf("REPORT_BUCKET is required unless --stdout is set")
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			svc := metrics.NewService(patient.NewService(a.store))
			report, err := buildReport(ctx, svc, bounds, time.Now().UTC())
			if err != nil {
				return err
			}

			if toStdout {
				return writeReport(cmd.OutOrStdout(), report)
			}

			obj, err := uploadReport(ctx, blobstore.NewS3Store(a.aws.S3, cfg.ReportBucket), report)
			if err != nil {
				return err
			}
			logger.Info().Str("location", obj.Location).Int64("size", obj.Size).Str("sha256", obj.Hash).Msg("report exported")
			fmt.Fprintln(cmd.OutOrStdout(), obj.Location)
			return nil
		},
	}
	exportCmd.Flags().String("min-age", "", "Inclusive lower age bound in years")
	exportCmd.Flags().String("max-age", "", "Inclusive upper age bound in years")
	exportCmd.Flags().Bool("stdout", false, "Print the report instead of uploading it")
	cmd.AddCommand(exportCmd)

	return cmd
}
