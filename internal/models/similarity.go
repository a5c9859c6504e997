package models

import "time"

// SimilarityReport is the novelty check outcome attached to a job.
// SemSim is nil when no embedding was available for comparison; Compared is
// the number of prior batch entries the article was checked against.
type SimilarityReport struct {
	CharSim      float64   `json:"char_sim"`
	SemSim       *float64  `json:"sem_sim,omitempty"`
	Hybrid       float64   `json:"hybrid"`
	NearestJobID string    `json:"nearest_job_id,omitempty"`
	Flagged      bool      `json:"flagged"`
	Compared     int       `json:"compared"`
	CheckedAt    time.Time `json:"checked_at"`
}
