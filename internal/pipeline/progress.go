package pipeline

// ProgressUpdate is one progress callback payload. Updates are emitted before
// a stage starts (Done=false) and after it settles (Done=true). Failures
// carry Failed=true on the terminal update.
type ProgressUpdate struct {
	StageID StageID `json:"stage_id"`
	Stage   string  `json:"stage"`
	Percent int     `json:"percent"`
	Done    bool    `json:"done"`
	Failed  bool    `json:"failed,omitempty"`
	Message string  `json:"message,omitempty"`
}

// ProgressFunc receives progress updates as the pipeline advances.
type ProgressFunc func(update ProgressUpdate)

// progressBand is a stage's slice of the 0..100 progress range.
type progressBand struct {
	startPct int
	endPct   int
}

// The fan-out stages share one band and advance it together as they settle.
const (
	parallelBandStart = 45
	parallelBandEnd   = 80
)

// progressBands maps each sequential stage to its linear slice of the
// progress range. Parallel stages all report within the shared band.
var progressBands = map[StageID]progressBand{
	StageDataFetch:   {0, 8},
	StagePromptBuild: {8, 12},
	StageGenerate:    {12, 30},
	StageExtract:     {30, 38},
	StageRefine:      {38, parallelBandStart},
	StageMerge:       {parallelBandEnd, 88},
	StagePersist:     {88, 96},
	StageSimilarity:  {96, 100},
}

// bandFor returns the progress band for a stage. Parallel stages share the
// fan-out band.
func bandFor(id StageID) progressBand {
	if IsParallel(id) {
		return progressBand{parallelBandStart, parallelBandEnd}
	}
	return progressBands[id]
}

// parallelPercent returns the band position after settled of total fan-out
// stages have finished.
func parallelPercent(settled, total int) int {
	if total <= 0 {
		return parallelBandEnd
	}
	if settled > total {
		settled = total
	}
	return parallelBandStart + (parallelBandEnd-parallelBandStart)*settled/total
}

// progressTracker clamps progress monotonic: a regeneration attempt re-runs
// earlier stages but reported percent never moves backwards.
type progressTracker struct {
	fn   ProgressFunc
	last int
}

func newProgressTracker(fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn}
}

func (t *progressTracker) report(id StageID, percent int, done, failed bool, message string) {
	if percent < t.last {
		percent = t.last
	} else {
		t.last = percent
	}
	if t.fn == nil {
		return
	}
	t.fn(ProgressUpdate{
		StageID: id,
		Stage:   StageName(id),
		Percent: percent,
		Done:    done,
		Failed:  failed,
		Message: message,
	})
}

// starting emits the pre-execution update at the stage's band start.
func (t *progressTracker) starting(id StageID) {
	t.report(id, bandFor(id).startPct, false, false, "Starting "+StageName(id))
}

// finished emits the post-execution update at the stage's band end.
func (t *progressTracker) finished(id StageID) {
	t.report(id, bandFor(id).endPct, true, false, "Completed "+StageName(id))
}

// failedStage emits a terminal failure update without advancing the band.
func (t *progressTracker) failedStage(id StageID, message string) {
	t.report(id, t.last, true, true, message)
}
