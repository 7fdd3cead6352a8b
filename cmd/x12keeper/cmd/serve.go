package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/solatis/x12keeper/internal/core/api"
	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/core/db"
	"github.com/solatis/x12keeper/internal/core/server"
	"github.com/solatis/x12keeper/internal/metrics"
	"github.com/solatis/x12keeper/internal/segment"
)

const Version = "0.1.0"

// requiredMigration must be applied before serving; authentication reads api_keys.
const requiredMigration = "002_api_keys.sql"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC segment API service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().Int("metrics-port", 9090, "metrics HTTP port (0 disables)")
	serveCmd.Flags().String("schema", "", "YAML segment schema overlay")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-port") {
		cfg.MetricsPort, _ = cmd.Flags().GetInt("metrics-port")
	}
	if cmd.Flags().Changed("schema") {
		cfg.SchemaFile, _ = cmd.Flags().GetString("schema")
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	url, err := resolveDBURL()
	if err != nil {
		return err
	}
	database, err := db.Open(url)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	var migrationID string
	checkQuery := `SELECT migration_id FROM migrations WHERE migration_id = ?`
	err = database.Get(&migrationID, database.Rebind(checkQuery), requiredMigration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("migration %s not applied - run 'x12keeper migrate' first", requiredMigration)
		}
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}

	schema, err := segment.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set X12_HMAC_SECRET environment variable)")
	}

	authenticator := auth.NewAuthenticator(secrets, queries)
	store := db.NewStore(database, queries, schema, cfg.MaxSegments)

	service, err := api.NewSegmentAPIService(store, schema, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	metrics.Register()

	log.Info("starting x12keeper segment API",
		zap.String("version", Version),
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.Strings("schema_tags", schema.Tags()),
	)

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *server.MetricsServer
	if cfg.MetricsPort != 0 {
		metricsServer = server.NewMetricsServer(cfg.Host, cfg.MetricsPort, database.PingContext, log)
	}

	g, gctx := errgroup.WithContext(sigCtx)
	g.Go(func() error {
		return grpcServer.Start(gctx)
	})
	if metricsServer != nil {
		g.Go(metricsServer.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error("metrics server shutdown", zap.Error(err))
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
