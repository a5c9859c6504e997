package pipeline

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/models"
)

// Context is the per-job working memory shared by all stages. The engine owns
// it uniquely for the lifetime of one job; it is never shared across jobs.
//
// During the parallel band every fan-out stage writes only its own output
// field, so the band needs no field locking; the error list is the one shared
// sink and is mutex-guarded. The merge stage runs alone after the band and is
// the only stage allowed to rewrite a band output (it finalizes Citations).
type Context struct {
	Job      *models.Job
	Language string

	// Sequential prefix outputs, retained across regeneration attempts.
	Config            *models.JobConfig
	CompanyData       *models.CompanyData
	Prompt            string
	SystemInstruction string

	// Generation outputs, overwritten on each attempt.
	RawArticle        string
	Grounding         []interfaces.GroundingSource
	Draft             *models.ArticleDraft
	RefinementApplied bool

	// Parallel band outputs.
	Citations     []models.Citation
	InternalLinks []models.InternalLink
	TOC           []models.TocEntry
	Metadata      *models.ArticleMetadata
	FAQ           []models.QAItem
	PAA           []models.QAItem
	Images        []models.ImageResult

	// Tail outputs.
	Validated        models.ValidatedArticle
	QualityReport    *models.QualityReport
	SimilarityReport *models.SimilarityReport
	StorageResult    *models.StorageResult

	// Attempt is the 1-based regeneration attempt currently executing.
	Attempt int

	Logger arbor.ILogger

	mu     sync.Mutex
	errors []models.StageError
}

// NewContext creates the working memory for one job run.
func NewContext(job *models.Job, logger arbor.ILogger) *Context {
	language := job.Language
	if language == "" {
		language = "en"
	}
	return &Context{
		Job:      job,
		Language: language,
		Attempt:  1,
		Logger:   logger,
	}
}

// AddError appends a failure record. Safe for concurrent use by parallel
// stages. Records are append-only and survive regeneration attempts.
func (ec *Context) AddError(errType models.StageErrorType, stageID StageID, message, detail string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.errors = append(ec.errors, models.StageError{
		Type:      errType,
		Message:   message,
		Detail:    detail,
		Module:    StageName(stageID),
		JobID:     ec.Job.ID,
		Stage:     int(stageID),
		Attempt:   ec.Attempt,
		Timestamp: time.Now(),
	})
}

// Errors returns a copy of the accumulated failure records.
func (ec *Context) Errors() []models.StageError {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	out := make([]models.StageError, len(ec.errors))
	copy(out, ec.errors)
	return out
}

// ErrorCount returns the number of accumulated failure records.
func (ec *Context) ErrorCount() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return len(ec.errors)
}

// ResetForRegeneration clears every generation-scoped output so the next
// attempt starts clean from the generate stage. The data-fetch and
// prompt-build outputs and the error history are retained.
func (ec *Context) ResetForRegeneration() {
	ec.RawArticle = ""
	ec.Grounding = nil
	ec.Draft = nil
	ec.RefinementApplied = false
	ec.Citations = nil
	ec.InternalLinks = nil
	ec.TOC = nil
	ec.Metadata = nil
	ec.FAQ = nil
	ec.PAA = nil
	ec.Images = nil
	ec.Validated = nil
	ec.QualityReport = nil
	ec.Attempt++
}
