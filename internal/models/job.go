// -----------------------------------------------------------------------
// Job - Article generation request and lifecycle state
// -----------------------------------------------------------------------

package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRequest is the client submission body for a new article job.
// Only Keyword and CompanyURL are required.
type JobRequest struct {
	Keyword       string         `json:"keyword" validate:"required,min=2"`
	CompanyURL    string         `json:"company_url" validate:"required,url"`
	CompanyName   string         `json:"company_name,omitempty"`
	Language      string         `json:"language,omitempty" validate:"omitempty,len=2"`
	Country       string         `json:"country,omitempty" validate:"omitempty,len=2"`
	WordCount     int            `json:"word_count,omitempty" validate:"omitempty,min=300,max=6000"`
	Tone          string         `json:"tone,omitempty"`
	BatchID       string         `json:"batch_id,omitempty"`
	SystemPrompts []string       `json:"system_prompts,omitempty"`
	Options       map[string]any `json:"options,omitempty"`
}

// ArtifactRef points at one persisted artifact of a job
type ArtifactRef struct {
	Key         string `json:"key"`
	Location    string `json:"location"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Job is one article request. Created on submit, mutated by the engine while
// running, immutable once a terminal status (completed/failed) is set.
type Job struct {
	ID            string         `json:"id"`
	BatchID       string         `json:"batch_id,omitempty"`
	Keyword       string         `json:"keyword"`
	CompanyURL    string         `json:"company_url"`
	CompanyName   string         `json:"company_name,omitempty"`
	Language      string         `json:"language,omitempty"`
	Country       string         `json:"country,omitempty"`
	WordCount     int            `json:"word_count,omitempty"`
	Tone          string         `json:"tone,omitempty"`
	SystemPrompts []string       `json:"system_prompts,omitempty"`
	Options       map[string]any `json:"options,omitempty"`

	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"` // 0..100
	CurrentStage string     `json:"current_stage,omitempty"`
	Attempt      int        `json:"attempt"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`

	Error        string       `json:"error,omitempty"`
	ErrorDetails string       `json:"error_details,omitempty"`
	Errors       []StageError `json:"errors,omitempty"` // advisory + fatal, append-only

	AEOScore  *int             `json:"aeo_score,omitempty"`
	Result    ValidatedArticle `json:"result,omitempty"`
	Artifacts []ArtifactRef    `json:"artifacts,omitempty"`
}

// NewJob creates a pending job from a validated submission
func NewJob(req *JobRequest) *Job {
	return &Job{
		ID:            uuid.New().String(),
		BatchID:       req.BatchID,
		Keyword:       req.Keyword,
		CompanyURL:    req.CompanyURL,
		CompanyName:   req.CompanyName,
		Language:      req.Language,
		Country:       req.Country,
		WordCount:     req.WordCount,
		Tone:          req.Tone,
		SystemPrompts: req.SystemPrompts,
		Options:       req.Options,
		Status:        JobStatusPending,
		CreatedAt:     time.Now(),
	}
}

// IsTerminal returns true if the job reached a final state
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// MarkStarted transitions the job to running
func (j *Job) MarkStarted() {
	j.Status = JobStatusRunning
	now := time.Now()
	j.StartedAt = &now
}

// MarkCompleted transitions the job to completed
func (j *Job) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.Progress = 100
	now := time.Now()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to failed with an error message
func (j *Job) MarkFailed(errorMsg, details string) {
	j.Status = JobStatusFailed
	j.Error = errorMsg
	j.ErrorDetails = details
	now := time.Now()
	j.CompletedAt = &now
}

// JobSummary is the lightweight status poll payload
type JobSummary struct {
	JobID              string    `json:"job_id"`
	Status             JobStatus `json:"status"`
	ProgressPercentage int       `json:"progress_percentage"`
	CurrentStage       string    `json:"current_stage,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
}

// Summary returns the lightweight poll view of the job
func (j *Job) Summary() JobSummary {
	return JobSummary{
		JobID:              j.ID,
		Status:             j.Status,
		ProgressPercentage: j.Progress,
		CurrentStage:       j.CurrentStage,
		ErrorMessage:       j.Error,
	}
}
