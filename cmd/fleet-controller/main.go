package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dsyorkd/fleet-controller/internal/api"
	"github.com/dsyorkd/fleet-controller/internal/billing"
	"github.com/dsyorkd/fleet-controller/internal/config"
	"github.com/dsyorkd/fleet-controller/internal/errors"
	"github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/migrations"
	"github.com/dsyorkd/fleet-controller/internal/notifier"
	"github.com/dsyorkd/fleet-controller/internal/pricing"
	"github.com/dsyorkd/fleet-controller/internal/provider"
	"github.com/dsyorkd/fleet-controller/internal/services"
	"github.com/dsyorkd/fleet-controller/internal/storage"
	"github.com/dsyorkd/fleet-controller/internal/telemetry"
	"github.com/dsyorkd/fleet-controller/internal/watcher"
	"github.com/dsyorkd/fleet-controller/pkg/k8s"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleet-controller",
	Short: "Fleet Controller - per-organization managed Kubernetes lifecycle",
	Long: `Fleet Controller provisions, scales, bills and monitors per-organization
managed Kubernetes clusters. It drives each organization's cluster through its
lifecycle against the provider API, computes monthly cost breakdowns, and
watches build pipeline events on the shared cluster to propagate build status
and backup commit statuses.`,
	RunE: runServer,
}

var (
	configFile string
	logLevel   string
	logFormat  string
)

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Fleet Controller %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Database migration commands",
	Long:  `Database migration commands for managing database schema changes`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Run pending migrations",
	RunE:  runMigrateUp,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Rollback the last migration",
	RunE:  runMigrateDown,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE:  runMigrateStatus,
}

var migrateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset database (DANGEROUS)",
	Long:  `Drop all tables and reapply all migrations. WARNING: This destroys all data!`,
	RunE:  runMigrateReset,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
	migrateCmd.AddCommand(migrateResetCmd)

	migrateResetCmd.Flags().Bool("confirm", false, "Confirm destructive reset operation")
}

func runServer(cmd *cobra.Command, args []string) error {
	log, err := setupLogger()
	if err != nil {
		return errors.Wrapf(err, "failed to setup logger")
	}

	log.WithFields(map[string]interface{}{
		"version": version,
		"commit":  commit,
		"date":    date,
	}).Info("Starting Fleet Controller")

	cfg, err := config.Load(configFile)
	if err != nil {
		return errors.Wrapf(err, "failed to load config")
	}

	db, err := storage.New(&cfg.Database, log)
	if err != nil {
		return errors.Wrapf(err, "failed to initialize database")
	}
	defer db.Close()

	log.Info("Database initialized successfully")

	// Provider gateway; a missing credential fails startup here, not on
	// the first request
	gateway, err := provider.New(provider.Config{
		BaseURL: cfg.Provider.BaseURL,
		Token:   cfg.Provider.Token,
	}, log)
	if err != nil {
		return errors.Wrapf(err, "failed to create provider gateway")
	}

	priceCache := pricing.New(gateway, log, pricing.WithTTL(cfg.Pricing.CacheTTL()))
	calculator := billing.NewCalculator(priceCache, billing.Config{
		MarkupPercent:  cfg.Billing.MarkupPercent,
		HAMonthlyPrice: cfg.Billing.HAMonthlyPrice,
	}, log)

	sinks := telemetry.New(telemetry.Config{
		StatusURL: cfg.Telemetry.StatusURL,
		UsageURL:  cfg.Telemetry.UsageURL,
		Timeout:   cfg.Telemetry.RequestTimeout(),
	}, log)

	clusters := services.NewClusterService(db, gateway, sinks, services.ClusterDefaults{
		Region:         cfg.Provider.DefaultRegion,
		NodeSize:       cfg.Provider.DefaultNodeSize,
		NodeCount:      cfg.Provider.DefaultNodeCount,
		ClusterVersion: cfg.Provider.ClusterVersion,
	}, log)

	// The build event watcher needs a build-cluster client; its absence
	// disables the watcher but never the lifecycle API
	var buildWatcher *watcher.Watcher
	k8sClient, err := k8s.NewClient(&k8s.Config{
		ConfigPath: cfg.Kubernetes.ConfigPath,
		InCluster:  cfg.Kubernetes.InCluster,
		Namespace:  cfg.Kubernetes.Namespace,
	}, log)
	if err != nil {
		log.WithError(err).Warn("Build cluster unavailable, event watcher disabled")
	} else {
		commits := notifier.New(notifier.Config{}, log)
		buildWatcher = watcher.New(k8sClient.Clientset(), k8sClient.Dynamic(), sinks, commits, watcher.Config{
			Namespace:      cfg.Watcher.Namespace,
			EstablishDelay: cfg.Watcher.EstablishDelay(),
			RunDelay:       cfg.Watcher.RunDelay(),
		}, log)

		if cfg.Watcher.AutoStart {
			buildWatcher.Start()
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup
	serverErrors := make(chan error, 1)

	apiServer := api.New(&cfg.API, log, api.Deps{
		Database:   db,
		Clusters:   clusters,
		Calculator: calculator,
		Watcher:    buildWatcher,
	}, cfg.App.Debug)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := apiServer.Start(); err != nil {
			serverErrors <- errors.Wrapf(err, "API server error")
		}
	}()

	log.Info("Fleet Controller started")

	select {
	case sig := <-sigChan:
		log.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-serverErrors:
		log.WithError(err).Error("Server error occurred")
	}

	log.Info("Initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if buildWatcher != nil {
		buildWatcher.Stop()
	}

	go func() {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.WithError(err).Error("Error stopping API server")
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("Shutdown complete")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	}

	return nil
}

func setupLogger() (*logger.Logger, error) {
	cfg := logger.Config{
		Level:  logLevel,
		Format: logFormat,
		Output: "stdout",
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create logger")
	}

	logger.SetDefault(log)
	return log, nil
}

// Migration command handlers

func runMigrateUp(cmd *cobra.Command, args []string) error {
	log, db, err := setupMigrationEnvironment()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB(), log)

	log.Info("Running database migrations...")
	if err := migrator.Up(); err != nil {
		return errors.Wrapf(err, "failed to run migrations")
	}

	log.Info("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	log, db, err := setupMigrationEnvironment()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB(), log)

	log.Info("Rolling back last migration...")
	if err := migrator.Down(); err != nil {
		return errors.Wrapf(err, "failed to rollback migration")
	}

	log.Info("Migration rollback completed successfully")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	log, db, err := setupMigrationEnvironment()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB(), log)

	statuses, err := migrator.Status()
	if err != nil {
		return errors.Wrapf(err, "failed to get migration status")
	}

	if len(statuses) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, status := range statuses {
		statusStr := "PENDING"
		appliedAt := ""
		if status.Applied {
			statusStr = "APPLIED"
			if status.AppliedAt != nil {
				appliedAt = fmt.Sprintf(" (applied at %s)", status.AppliedAt.Format("2006-01-02 15:04:05"))
			}
		}
		fmt.Printf("%-15s %s - %s%s\n", status.ID, statusStr, status.Description, appliedAt)
	}

	return nil
}

func runMigrateReset(cmd *cobra.Command, args []string) error {
	confirm, _ := cmd.Flags().GetBool("confirm")
	if !confirm {
		return fmt.Errorf("reset operation requires --confirm flag due to destructive nature")
	}

	log, db, err := setupMigrationEnvironment()
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrations.NewMigrator(db.DB(), log)

	log.Warn("DANGER: Resetting database - all data will be lost!")
	if err := migrator.Reset(); err != nil {
		return errors.Wrapf(err, "failed to reset database")
	}

	log.Info("Database reset completed successfully")
	return nil
}

func setupMigrationEnvironment() (*logger.Logger, *storage.Database, error) {
	log, err := setupLogger()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to setup logger")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to load config")
	}

	db, err := storage.NewWithoutMigration(&cfg.Database, log)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open database")
	}

	return log, db, nil
}
