package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// SQLiteStore implements ports.Store using GORM and SQLite.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens the database, installs the OTel tracing plugin and
// migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to install tracing plugin: %w", err)
	}

	if err := db.AutoMigrate(&ScanModel{}, &AssetModel{}, &VulnerabilityModel{}, &JobModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Covering indices for the hot reconciliation lookups
	db.Exec("CREATE INDEX IF NOT EXISTS idx_vulns_last_seen ON vulnerability_models(last_seen)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_assets_last_seen ON asset_models(last_seen)")

	return &SQLiteStore{db: db}, nil
}

// GetAsset retrieves an asset by id.
func (s *SQLiteStore) GetAsset(ctx context.Context, id string) (*domain.Asset, error) {
	var model AssetModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("asset lookup failed: %w", err)
	}
	return toAssetDomain(model), nil
}

// GetAssetByIdentifier looks up an asset by its natural key.
func (s *SQLiteStore) GetAssetByIdentifier(ctx context.Context, userID, identifier string) (*domain.Asset, error) {
	var model AssetModel
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND identifier = ?", userID, identifier).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("asset lookup failed: %w", err)
	}
	return toAssetDomain(model), nil
}

// SaveAsset creates or updates an asset row.
func (s *SQLiteStore) SaveAsset(ctx context.Context, asset *domain.Asset) error {
	model := toAssetModel(asset)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save asset %s: %w", asset.Identifier, err)
	}
	return nil
}

// FindVulnerability resolves the dedup key (user, asset, port, discriminator)
// to an existing finding, if any.
func (s *SQLiteStore) FindVulnerability(ctx context.Context, userID, assetID string, port int, disc domain.Discriminator) (*domain.Vulnerability, error) {
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND asset_id = ? AND port = ?", userID, assetID, port)

	switch disc.Field {
	case domain.DiscriminatorPluginID:
		query = query.Where("plugin_id = ?", disc.Value)
	case domain.DiscriminatorCVEID:
		query = query.Where("cve_id = ?", disc.Value)
	default:
		query = query.Where("title = ?", disc.Value)
	}

	var model VulnerabilityModel
	err := query.First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vulnerability lookup failed: %w", err)
	}
	return toVulnerabilityDomain(model), nil
}

// SaveVulnerability creates or updates a finding row.
func (s *SQLiteStore) SaveVulnerability(ctx context.Context, vuln *domain.Vulnerability) error {
	model := toVulnerabilityModel(vuln)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save vulnerability %s: %w", vuln.Title, err)
	}
	return nil
}

// ListVulnerabilitiesByScan returns all findings currently attributed to a
// scan, ordered for deterministic report output.
func (s *SQLiteStore) ListVulnerabilitiesByScan(ctx context.Context, scanID string) ([]domain.Vulnerability, error) {
	var models []VulnerabilityModel
	err := s.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("cvss_score DESC, title ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("vulnerability list failed: %w", err)
	}

	vulns := make([]domain.Vulnerability, len(models))
	for i, m := range models {
		vulns[i] = *toVulnerabilityDomain(m)
	}
	return vulns, nil
}

// CreateJob inserts a new job row.
func (s *SQLiteStore) CreateJob(ctx context.Context, job *domain.Job) error {
	model := toJobModel(job)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var model JobModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("job lookup failed: %w", err)
	}
	return toJobDomain(model), nil
}

// SaveJob updates a job row.
func (s *SQLiteStore) SaveJob(ctx context.Context, job *domain.Job) error {
	model := toJobModel(job)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

// FindActiveJob returns the non-terminal job for (scan, job type), if any.
// This backs the enqueue idempotency guarantee.
func (s *SQLiteStore) FindActiveJob(ctx context.Context, scanID string, jobType domain.JobType) (*domain.Job, error) {
	var model JobModel
	err := s.db.WithContext(ctx).
		Where("scan_id = ? AND job_type = ? AND status IN ?",
			scanID, string(jobType), []string{string(domain.JobPending), string(domain.JobRunning)}).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job lookup failed: %w", err)
	}
	return toJobDomain(model), nil
}

// GetScan retrieves a scan by id.
func (s *SQLiteStore) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	var model ScanModel
	err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan lookup failed: %w", err)
	}
	return toScanDomain(model), nil
}

// SaveScan creates or updates a scan row.
func (s *SQLiteStore) SaveScan(ctx context.Context, scan *domain.Scan) error {
	model := toScanModel(scan)
	if err := s.db.WithContext(ctx).Save(&model).Error; err != nil {
		return fmt.Errorf("failed to save scan %s: %w", scan.ID, err)
	}
	return nil
}

// InTransaction runs fn against a transactional store view.
func (s *SQLiteStore) InTransaction(ctx context.Context, fn func(ports.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx})
	})
}

// Close releases the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure interface compliance
var _ ports.Store = (*SQLiteStore)(nil)
