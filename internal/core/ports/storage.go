package ports

import (
	"context"

	"vulnbridge/internal/core/domain"
)

// Store is the persistence collaborator consumed by the enqueue service and
// the reconciliation worker. Lookups return (nil, nil) when no row matches.
type Store interface {
	// Assets
	GetAsset(ctx context.Context, id string) (*domain.Asset, error)
	GetAssetByIdentifier(ctx context.Context, userID, identifier string) (*domain.Asset, error)
	SaveAsset(ctx context.Context, asset *domain.Asset) error

	// Vulnerabilities
	FindVulnerability(ctx context.Context, userID, assetID string, port int, disc domain.Discriminator) (*domain.Vulnerability, error)
	SaveVulnerability(ctx context.Context, vuln *domain.Vulnerability) error
	ListVulnerabilitiesByScan(ctx context.Context, scanID string) ([]domain.Vulnerability, error)

	// Jobs
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	SaveJob(ctx context.Context, job *domain.Job) error
	FindActiveJob(ctx context.Context, scanID string, jobType domain.JobType) (*domain.Job, error)

	// Scans
	GetScan(ctx context.Context, id string) (*domain.Scan, error)
	SaveScan(ctx context.Context, scan *domain.Scan) error

	// InTransaction runs fn against a transactional view of the store and
	// commits when fn returns nil. Used to batch vulnerability merges.
	InTransaction(ctx context.Context, fn func(Store) error) error

	Close() error
}
