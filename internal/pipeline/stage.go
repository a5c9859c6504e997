package pipeline

import "context"

// StageID is a stage's fixed position in the canonical pipeline.
type StageID int

const (
	StageDataFetch     StageID = 0
	StagePromptBuild   StageID = 1
	StageGenerate      StageID = 2
	StageExtract       StageID = 3
	StageRefine        StageID = 4
	StageCitations     StageID = 5
	StageInternalLinks StageID = 6
	StageTOC           StageID = 7
	StageMetadata      StageID = 8
	StageFAQ           StageID = 9
	StageImage         StageID = 10
	StageMerge         StageID = 11
	StagePersist       StageID = 12
	StageSimilarity    StageID = 13
)

// FirstStageID and LastStageID bound the canonical pipeline.
const (
	FirstStageID = StageDataFetch
	LastStageID  = StageSimilarity
)

// Stage is the unit of pipeline work. Stages are idempotent by convention:
// re-running one overwrites its declared context outputs, which is what makes
// regeneration attempts possible.
type Stage interface {
	// ID returns the stage's canonical pipeline position.
	ID() StageID

	// Name returns the stage's short name used in logs and progress events.
	Name() string

	// Critical reports whether a failure in this stage terminates the job.
	Critical() bool

	// Execute runs the stage against the job's execution context. The passed
	// context carries the per-stage timeout; implementations must honor
	// cancellation on blocking calls.
	Execute(ctx context.Context, ec *Context) error
}

// criticalStages fail the whole job when they error. Everything else is
// advisory: the error is recorded and the pipeline continues.
var criticalStages = map[StageID]bool{
	StageDataFetch: true,
	StageGenerate:  true,
	StageMerge:     true,
	StagePersist:   true,
}

// IsCritical reports whether a failure at this position terminates the job.
func IsCritical(id StageID) bool {
	return criticalStages[id]
}

// IsParallel reports whether the stage belongs to the enrichment fan-out
// band that runs concurrently after the sequential prefix.
func IsParallel(id StageID) bool {
	return id >= StageCitations && id <= StageImage
}

// IsGenerationScoped reports whether the stage re-runs on a regeneration
// attempt. The data-fetch and prompt-build outputs are retained across
// attempts; everything from generation through merge is recomputed.
func IsGenerationScoped(id StageID) bool {
	return id >= StageGenerate && id <= StageMerge
}

// stageNames maps ids to their canonical short names. Stage implementations
// report the same names through Name().
var stageNames = map[StageID]string{
	StageDataFetch:     "data_fetch",
	StagePromptBuild:   "prompt_build",
	StageGenerate:      "generate",
	StageExtract:       "extract",
	StageRefine:        "refine",
	StageCitations:     "citations",
	StageInternalLinks: "internal_links",
	StageTOC:           "toc",
	StageMetadata:      "metadata",
	StageFAQ:           "faq",
	StageImage:         "image",
	StageMerge:         "merge",
	StagePersist:       "persist",
	StageSimilarity:    "similarity",
}

// StageName returns the canonical short name for a stage id, or "unknown"
// for ids outside the pipeline.
func StageName(id StageID) string {
	if name, ok := stageNames[id]; ok {
		return name
	}
	return "unknown"
}
