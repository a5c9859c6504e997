package models

import (
	"errors"
	"time"
)

// ErrArticleValidation marks a merge output that failed the required-field
// or format checks. Wrap it so the engine classifies the failure correctly.
var ErrArticleValidation = errors.New("article validation failed")

// StageErrorType classifies a stage failure record
type StageErrorType string

const (
	// ErrorTypeCritical terminates the job
	ErrorTypeCritical StageErrorType = "critical"
	// ErrorTypeAdvisory is recorded and execution continues
	ErrorTypeAdvisory StageErrorType = "advisory"
	// ErrorTypeValidation marks a required-field check failure (treated as critical)
	ErrorTypeValidation StageErrorType = "validation"
	// ErrorTypeQuality marks a quality underflow after exhausted regeneration
	ErrorTypeQuality StageErrorType = "quality_underflow"
	// ErrorTypeCancelled marks an externally requested abort
	ErrorTypeCancelled StageErrorType = "cancelled"
	// ErrorTypeConfig marks a registry/configuration fault detected before run
	ErrorTypeConfig StageErrorType = "config"
)

// StageError is one failure record appended to a job's error list.
// Advisory records never fail the job; they exist for post-mortem.
type StageError struct {
	Type      StageErrorType `json:"type"`
	Message   string         `json:"message"`
	Module    string         `json:"module"`
	Detail    string         `json:"detail,omitempty"` // cause chain summary
	JobID     string         `json:"job_id"`
	Stage     int            `json:"stage"`
	Attempt   int            `json:"attempt"`
	Timestamp time.Time      `json:"timestamp"`
}

// IsFatal returns true for record types that terminate the job
func (e StageError) IsFatal() bool {
	return e.Type == ErrorTypeCritical || e.Type == ErrorTypeValidation || e.Type == ErrorTypeCancelled
}
