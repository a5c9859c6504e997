// -----------------------------------------------------------------------
// Similarity Checker - hybrid char-shingle + embedding novelty check
// -----------------------------------------------------------------------

package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Hybrid score weights. Phrasing overlap (char) is the weaker signal; topical
// overlap (semantic) dominates.
const (
	charWeight = 0.4
	semWeight  = 0.6
)

// Service implements SimilarityChecker over an in-memory batch store.
type Service struct {
	store      *memoryStore
	embeddings interfaces.EmbeddingService
	threshold  float64
	logger     arbor.ILogger
}

// NewService creates the batch similarity checker. embeddings may be nil, in
// which case scoring falls back to character similarity only.
func NewService(cfg *common.Config, embeddings interfaces.EmbeddingService, logger arbor.ILogger) *Service {
	ttl := 24 * time.Hour
	if d, err := time.ParseDuration(cfg.Similarity.BatchTTL); err == nil && d > 0 {
		ttl = d
	}

	threshold := cfg.Engine.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 0.70
	}

	return &Service{
		store:      newMemoryStore(cfg.Engine.BatchMemoryCapacity, ttl),
		embeddings: embeddings,
		threshold:  threshold,
		logger:     logger,
	}
}

// Check fingerprints the article body, compares it against the batch's prior
// entries, appends it to the batch memory, and returns the report. The
// returned error is non-nil only for embedding failures, which callers treat
// as advisory: the report is still valid (char-only) in that case.
func (s *Service) Check(ctx context.Context, jobID, batchID, keyword, body string) (*models.SimilarityReport, error) {
	report := &models.SimilarityReport{CheckedAt: time.Now()}

	if batchID == "" {
		// Unbatched jobs have nothing to collide with; nothing is retained.
		return report, nil
	}

	shingles := Shingles(body)

	var embedding []float32
	var embedErr error
	if s.embeddings != nil {
		raw, err := s.embeddings.Embed(ctx, body)
		if err != nil {
			embedErr = fmt.Errorf("embedding unavailable, using character similarity only: %w", err)
		} else {
			embedding = UnitNormalize(raw)
		}
	}

	entry := batchEntry{
		JobID:     jobID,
		Keyword:   keyword,
		Shingles:  shingles,
		Embedding: embedding,
		AddedAt:   time.Now(),
	}

	s.store.compareAndAppend(batchID, entry, func(prior []batchEntry) {
		report.Compared = len(prior)

		bestHybrid := -1.0
		for i := range prior {
			charSim := Jaccard(shingles, prior[i].Shingles)

			var semSim *float64
			if embedding != nil && prior[i].Embedding != nil {
				sim := Cosine(embedding, prior[i].Embedding)
				semSim = &sim
			}

			hybrid := charSim
			if semSim != nil {
				hybrid = charWeight*charSim + semWeight*(*semSim)
			}

			if hybrid > bestHybrid {
				bestHybrid = hybrid
				report.CharSim = charSim
				report.SemSim = semSim
				report.Hybrid = hybrid
				report.NearestJobID = prior[i].JobID
			}
		}
	})

	report.Flagged = report.Compared > 0 && report.Hybrid >= s.threshold

	event := s.logger.Debug()
	if report.Flagged {
		event = s.logger.Warn()
	}
	event.
		Str("job_id", jobID).
		Str("batch_id", batchID).
		Int("compared", report.Compared).
		Float64("hybrid", report.Hybrid).
		Str("nearest_job_id", report.NearestJobID).
		Msg("Checked batch similarity")

	return report, embedErr
}

// PurgeExpired drops batch memories idle past the TTL.
func (s *Service) PurgeExpired() int {
	removed := s.store.purgeExpired()
	if removed > 0 {
		s.logger.Info().
			Int("batches_removed", removed).
			Int("batches_live", s.store.batchCount()).
			Msg("Purged expired similarity batches")
	}
	return removed
}

// BatchSize reports how many fingerprints a batch currently retains.
func (s *Service) BatchSize(batchID string) int {
	return s.store.entryCount(batchID)
}
