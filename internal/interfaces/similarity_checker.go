package interfaces

import (
	"context"

	"github.com/ternarybob/scriptor/internal/models"
)

// SimilarityChecker detects near-duplicate articles inside a batch. Check
// compares the article body against the batch's retained entries and then
// appends the article to the batch memory.
type SimilarityChecker interface {
	// Check computes the hybrid similarity report for the article body
	// against prior entries sharing batchID. Jobs without a batch are
	// compared against nothing and produce an unflagged report.
	Check(ctx context.Context, jobID, batchID, keyword, body string) (*models.SimilarityReport, error)

	// PurgeExpired drops batch memories idle past their TTL. Returns the
	// number of batches removed.
	PurgeExpired() int
}
