package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Dataset operations
	SaveDataset(ctx context.Context, tenantID string, ds *Dataset) error
	GetDataset(ctx context.Context, tenantID string, datasetID string) (*Dataset, error)
	ListDatasets(ctx context.Context, tenantID string) ([]*Dataset, error)

	// Analysis results
	SaveAnalysis(ctx context.Context, tenantID string, a *Analysis) error
	GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*Analysis, error)
	ListAnalysesByDataset(ctx context.Context, tenantID string, datasetID string) ([]*Analysis, error)

	// Custom fraud rule operations
	SaveFraudRule(ctx context.Context, tenantID string, rule *FraudRule) error
	GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*FraudRule, error)
	ListFraudRules(ctx context.Context, tenantID string) ([]*FraudRule, error)
	DeleteFraudRule(ctx context.Context, tenantID string, ruleID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
