// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/opensource-finance/heron/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveDataset stores an uploaded claims table with tenant isolation.
func (r *SQLRepository) SaveDataset(ctx context.Context, tenantID string, ds *domain.Dataset) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	claims, err := json.Marshal(ds.Claims)
	if err != nil {
		return fmt.Errorf("failed to encode claims: %w", err)
	}

	query := `
		INSERT INTO datasets (
			id, tenant_id, name, row_count, claims, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		ds.ID, tenantID, ds.Name, ds.RowCount,
		string(claims), ds.CreatedAt,
	)
	return err
}

// GetDataset retrieves a dataset with its claims payload.
func (r *SQLRepository) GetDataset(ctx context.Context, tenantID string, datasetID string) (*domain.Dataset, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, row_count, claims, created_at
		FROM datasets
		WHERE tenant_id = ? AND id = ?
	`

	var ds domain.Dataset
	var claims string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, datasetID).Scan(
		&ds.ID, &ds.TenantID, &ds.Name, &ds.RowCount,
		&claims, &ds.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(claims), &ds.Claims); err != nil {
		return nil, fmt.Errorf("failed to parse dataset claims: %w", err)
	}

	return &ds, nil
}

// ListDatasets retrieves dataset metadata for a tenant, newest first.
// Claims payloads stay in the database; use GetDataset to load one.
func (r *SQLRepository) ListDatasets(ctx context.Context, tenantID string) ([]*domain.Dataset, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, row_count, created_at
		FROM datasets
		WHERE tenant_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var datasets []*domain.Dataset
	for rows.Next() {
		var ds domain.Dataset
		if err := rows.Scan(
			&ds.ID, &ds.TenantID, &ds.Name, &ds.RowCount, &ds.CreatedAt,
		); err != nil {
			return nil, err
		}
		datasets = append(datasets, &ds)
	}

	return datasets, rows.Err()
}

// SaveAnalysis stores an analysis result with tenant isolation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, tenantID string, a *domain.Analysis) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO analyses (
			id, tenant_id, dataset_id, operation, result, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.DatasetID, string(a.Operation),
		string(a.Result), a.CreatedAt,
	)
	return err
}

// GetAnalysis retrieves an analysis by ID with tenant isolation.
func (r *SQLRepository) GetAnalysis(ctx context.Context, tenantID string, analysisID string) (*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, dataset_id, operation, result, created_at
		FROM analyses
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.Analysis
	var operation, result string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, analysisID).Scan(
		&a.ID, &a.TenantID, &a.DatasetID, &operation, &result, &a.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Operation = domain.Operation(operation)
	a.Result = json.RawMessage(result)

	return &a, nil
}

// ListAnalysesByDataset retrieves all analyses run against a dataset,
// newest first.
func (r *SQLRepository) ListAnalysesByDataset(ctx context.Context, tenantID string, datasetID string) ([]*domain.Analysis, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, dataset_id, operation, result, created_at
		FROM analyses
		WHERE tenant_id = ? AND dataset_id = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var analyses []*domain.Analysis
	for rows.Next() {
		var a domain.Analysis
		var operation, result string

		if err := rows.Scan(
			&a.ID, &a.TenantID, &a.DatasetID, &operation, &result, &a.CreatedAt,
		); err != nil {
			return nil, err
		}

		a.Operation = domain.Operation(operation)
		a.Result = json.RawMessage(result)
		analyses = append(analyses, &a)
	}

	return analyses, rows.Err()
}

// SaveFraudRule stores a custom fraud rule with tenant isolation.
// Saving an existing rule ID updates it in place.
func (r *SQLRepository) SaveFraudRule(ctx context.Context, tenantID string, rule *domain.FraudRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO fraud_rules (
			id, tenant_id, name, description, expression, weight, flag, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			weight = excluded.weight,
			flag = excluded.flag,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		rule.Expression, rule.Weight, rule.Flag, enabled,
		now, now,
	)
	return err
}

// GetFraudRule retrieves an active fraud rule with tenant isolation.
func (r *SQLRepository) GetFraudRule(ctx context.Context, tenantID string, ruleID string) (*domain.FraudRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, weight, flag, enabled, created_at, updated_at
		FROM fraud_rules
		WHERE tenant_id = ? AND id = ? AND enabled = 1
	`

	var rule domain.FraudRule
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID).Scan(
		&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
		&rule.Expression, &rule.Weight, &rule.Flag, &enabled,
		&rule.CreatedAt, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled == 1

	return &rule, nil
}

// ListFraudRules retrieves all active fraud rules for a tenant.
func (r *SQLRepository) ListFraudRules(ctx context.Context, tenantID string) ([]*domain.FraudRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, expression, weight, flag, enabled, created_at, updated_at
		FROM fraud_rules
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.FraudRule
	for rows.Next() {
		var rule domain.FraudRule
		var enabled int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Description,
			&rule.Expression, &rule.Weight, &rule.Flag, &enabled,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, err
		}

		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// DeleteFraudRule soft-deletes a fraud rule by setting enabled = 0.
func (r *SQLRepository) DeleteFraudRule(ctx context.Context, tenantID string, ruleID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE fraud_rules
		SET enabled = 0, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), tenantID, ruleID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
