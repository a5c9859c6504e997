package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// artifactRecord is the stored form of one artifact: the reference fields
// plus the bytes. Records key on jobID/key so one Upsert per export replaces
// earlier bytes for the same artifact.
type artifactRecord struct {
	ID          string `badgerhold:"key"`
	JobID       string `badgerholdIndex:"JobID"`
	Key         string
	ContentType string
	Size        int
	Data        []byte
	CreatedAt   time.Time
}

func (r *artifactRecord) ref() *models.ArtifactRef {
	return &models.ArtifactRef{
		Key:         r.Key,
		Location:    artifactLocation(r.JobID, r.Key),
		ContentType: r.ContentType,
		Size:        r.Size,
	}
}

func artifactLocation(jobID, key string) string {
	return fmt.Sprintf("/api/jobs/%s/artifacts/%s", jobID, key)
}

// ArtifactStorage implements the ArtifactStorage interface for Badger
type ArtifactStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArtifactStorage creates a new ArtifactStorage instance
func NewArtifactStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArtifactStorage {
	return &ArtifactStorage{
		db:     db,
		logger: logger,
	}
}

func (s *ArtifactStorage) Save(ctx context.Context, jobID, key, contentType string, data []byte) (*models.ArtifactRef, error) {
	if jobID == "" || key == "" {
		return nil, fmt.Errorf("job ID and artifact key are required")
	}

	record := &artifactRecord{
		ID:          jobID + "/" + key,
		JobID:       jobID,
		Key:         key,
		ContentType: contentType,
		Size:        len(data),
		Data:        data,
		CreatedAt:   time.Now(),
	}
	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return nil, fmt.Errorf("failed to save artifact %s: %w", key, err)
	}
	return record.ref(), nil
}

func (s *ArtifactStorage) Get(ctx context.Context, jobID, key string) ([]byte, *models.ArtifactRef, error) {
	var record artifactRecord
	if err := s.db.Store().Get(jobID+"/"+key, &record); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil, fmt.Errorf("artifact not found: %s/%s", jobID, key)
		}
		return nil, nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return record.Data, record.ref(), nil
}

func (s *ArtifactStorage) List(ctx context.Context, jobID string) ([]*models.ArtifactRef, error) {
	var records []artifactRecord
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("Key")
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	refs := make([]*models.ArtifactRef, len(records))
	for i := range records {
		refs[i] = records[i].ref()
	}
	return refs, nil
}

func (s *ArtifactStorage) DeleteByJob(ctx context.Context, jobID string) (int, error) {
	count, err := s.db.Store().Count(&artifactRecord{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID"))
	if err != nil {
		return 0, fmt.Errorf("failed to count artifacts: %w", err)
	}
	if count == 0 {
		return 0, nil
	}

	if err := s.db.Store().DeleteMatching(&artifactRecord{}, badgerhold.Where("JobID").Eq(jobID).Index("JobID")); err != nil {
		return 0, fmt.Errorf("failed to delete artifacts: %w", err)
	}
	return int(count), nil
}
