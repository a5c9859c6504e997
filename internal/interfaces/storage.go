package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// ListOptions controls job listing queries
type ListOptions struct {
	Status  string
	BatchID string
	Limit   int
	Offset  int
}

// JobStorage - interface for generation job persistence
type JobStorage interface {
	// CRUD operations
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	UpdateJob(ctx context.Context, job *models.Job) error
	DeleteJob(ctx context.Context, id string) error

	// List operations
	ListJobs(ctx context.Context, opts *ListOptions) ([]*models.Job, error)
	GetJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	GetJobsByBatch(ctx context.Context, batchID string) ([]*models.Job, error)

	// Stats operations
	CountJobs(ctx context.Context) (int, error)
	CountJobsByStatus(ctx context.Context, status models.JobStatus) (int, error)
}

// ArtifactStorage - interface for generated artifact persistence (article
// exports, citations, reports, images)
type ArtifactStorage interface {
	Save(ctx context.Context, jobID, key, contentType string, data []byte) (*models.ArtifactRef, error)
	Get(ctx context.Context, jobID, key string) ([]byte, *models.ArtifactRef, error)
	List(ctx context.Context, jobID string) ([]*models.ArtifactRef, error)
	DeleteByJob(ctx context.Context, jobID string) (int, error)
}

// StorageManager - composite interface for all storage operations
type StorageManager interface {
	JobStorage() JobStorage
	ArtifactStorage() ArtifactStorage
	Close() error
}
