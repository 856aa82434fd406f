package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dsyorkd/fleet-controller/internal/errors"
	applogger "github.com/dsyorkd/fleet-controller/internal/logger"
	"github.com/dsyorkd/fleet-controller/internal/migrations"
	"github.com/dsyorkd/fleet-controller/internal/models"
)

// Database wraps the GORM database connection with additional functionality
type Database struct {
	db     *gorm.DB
	logger applogger.Interface
}

// Config holds database configuration
type Config struct {
	Path            string `yaml:"path"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	LogLevel        string `yaml:"log_level"`
}

// DefaultConfig returns default database configuration
func DefaultConfig() *Config {
	return &Config{
		Path:            "data/fleet-controller.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: "5m",
		LogLevel:        "warn",
	}
}

// New creates a new database connection and runs pending migrations
func New(config *Config, logger applogger.Interface) (*Database, error) {
	database, err := open(config, logger)
	if err != nil {
		return nil, err
	}

	if err := database.migrate(); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate database")
	}

	logger.WithField("path", database.path(config)).Info("Database connection established")
	return database, nil
}

// NewWithoutMigration creates a new database connection without running
// migrations. Migration commands manage schema changes explicitly.
func NewWithoutMigration(config *Config, logger applogger.Interface) (*Database, error) {
	database, err := open(config, logger)
	if err != nil {
		return nil, err
	}

	logger.WithField("path", database.path(config)).Info("Database connection established (without migrations)")
	return database, nil
}

func open(config *Config, logger applogger.Interface) (*Database, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := ensureDirExists(filepath.Dir(config.Path)); err != nil {
		return nil, errors.Wrapf(err, "failed to create database directory")
	}

	db, err := gorm.Open(sqlite.Open(config.Path), &gorm.Config{
		Logger: &gormSlogAdapter{logger: logger.WithField("component", "database")},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get underlying sql.DB")
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)

	if config.ConnMaxLifetime != "" {
		duration, err := time.ParseDuration(config.ConnMaxLifetime)
		if err != nil {
			logger.Warnf("Invalid conn_max_lifetime '%s', using default 5m", config.ConnMaxLifetime)
			duration = 5 * time.Minute
		}
		sqlDB.SetConnMaxLifetime(duration)
	}

	return &Database{db: db, logger: logger}, nil
}

func (d *Database) path(config *Config) string {
	if config == nil {
		return DefaultConfig().Path
	}
	return config.Path
}

// DB returns the underlying GORM database instance
func (d *Database) DB() *gorm.DB {
	return d.db
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health checks database connectivity
func (d *Database) Health() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// migrate runs database migrations
func (d *Database) migrate() error {
	d.logger.Info("Running database migrations")

	migrator := migrations.NewMigrator(d.db, d.logger)

	if err := migrator.ValidateMigrationOrder(); err != nil {
		return errors.Wrapf(err, "migration validation failed")
	}

	if err := migrator.Up(); err != nil {
		return errors.Wrapf(err, "failed to run migrations")
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}

// ensureDirExists creates directory if it doesn't exist
func ensureDirExists(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}

	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("path %s exists but is not a directory", dir)
		}
		return nil
	}

	if !os.IsNotExist(err) {
		return err
	}

	return os.MkdirAll(dir, 0755)
}

// gormSlogAdapter adapts our structured logger to the GORM logger interface
type gormSlogAdapter struct {
	logger applogger.Interface
}

func (g *gormSlogAdapter) LogMode(level logger.LogLevel) logger.Interface {
	return g
}

func (g *gormSlogAdapter) Info(ctx context.Context, msg string, data ...interface{}) {
	g.logger.Infof(msg, data...)
}

func (g *gormSlogAdapter) Warn(ctx context.Context, msg string, data ...interface{}) {
	g.logger.Warnf(msg, data...)
}

func (g *gormSlogAdapter) Error(ctx context.Context, msg string, data ...interface{}) {
	g.logger.Errorf(msg, data...)
}

func (g *gormSlogAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	fields := map[string]interface{}{
		"duration": elapsed.String(),
		"rows":     rows,
		"sql":      sql,
	}

	if err != nil {
		g.logger.WithFields(fields).WithError(err).Error("Database query failed")
	} else {
		g.logger.WithFields(fields).Debug("Database query executed")
	}
}

// NewForTest creates an in-memory database for testing, with the schema
// auto-migrated rather than run through the migration system.
func NewForTest(logger applogger.Interface) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: &gormSlogAdapter{logger: logger.WithField("component", "database")},
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to test database")
	}

	if err := db.AutoMigrate(&models.Organization{}); err != nil {
		return nil, errors.Wrapf(err, "failed to migrate test database")
	}

	return &Database{db: db, logger: logger}, nil
}

// Organization operations

// CreateOrganization creates a new organization
func (d *Database) CreateOrganization(org *models.Organization) error {
	return d.db.Create(org).Error
}

// GetOrganization retrieves an organization by ID
func (d *Database) GetOrganization(id uint) (*models.Organization, error) {
	var org models.Organization
	err := d.db.First(&org, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// GetOrganizationBySlug retrieves an organization by slug
func (d *Database) GetOrganizationBySlug(slug string) (*models.Organization, error) {
	var org models.Organization
	err := d.db.Where("slug = ?", slug).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

// ListOrganizations retrieves all organizations
func (d *Database) ListOrganizations() ([]models.Organization, error) {
	var orgs []models.Organization
	err := d.db.Find(&orgs).Error
	return orgs, err
}

// ListOrganizationsWithClusters retrieves organizations that have a cached
// cluster record
func (d *Database) ListOrganizationsWithClusters() ([]models.Organization, error) {
	var orgs []models.Organization
	err := d.db.Where("doks IS NOT NULL").Find(&orgs).Error
	return orgs, err
}

// UpdateOrganizationCluster writes the organization's cached cluster record.
// This is a partial update touching only the doks column.
func (d *Database) UpdateOrganizationCluster(id uint, record *models.ClusterRecord) error {
	result := d.db.Model(&models.Organization{}).Where("id = ?", id).Update("doks", record)
	if result.Error != nil {
		return errors.NewDatabaseError("update cluster record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}

// ClearOrganizationCluster removes the organization's cached cluster record
func (d *Database) ClearOrganizationCluster(id uint) error {
	result := d.db.Model(&models.Organization{}).Where("id = ?", id).Update("doks", nil)
	if result.Error != nil {
		return errors.NewDatabaseError("clear cluster record", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.ErrNotFound
	}
	return nil
}
