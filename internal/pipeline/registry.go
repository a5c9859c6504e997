package pipeline

import (
	"fmt"
	"sort"
)

// Registry holds the fixed stage set for the canonical pipeline, keyed by id.
// It is built once at startup and validated before any job runs.
type Registry struct {
	stages map[StageID]Stage
}

// NewRegistry validates the given stages and builds the registry. It fails
// when a canonical id is missing, an id appears twice, an id is outside the
// pipeline, or a stage's criticality disagrees with its position.
func NewRegistry(stages []Stage) (*Registry, error) {
	byID := make(map[StageID]Stage, len(stages))
	for _, s := range stages {
		id := s.ID()
		if id < FirstStageID || id > LastStageID {
			return nil, fmt.Errorf("unknown stage id %d (%s)", id, s.Name())
		}
		if _, dup := byID[id]; dup {
			return nil, fmt.Errorf("duplicate stage id %d (%s)", id, s.Name())
		}
		if s.Critical() != IsCritical(id) {
			return nil, fmt.Errorf("stage %d (%s): criticality mismatch", id, s.Name())
		}
		byID[id] = s
	}

	for id := FirstStageID; id <= LastStageID; id++ {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("missing stage id %d (%s)", id, StageName(id))
		}
	}

	return &Registry{stages: byID}, nil
}

// Stage returns the stage registered at the given id.
func (r *Registry) Stage(id StageID) Stage {
	return r.stages[id]
}

// Parallel returns the enrichment fan-out stages in id order.
func (r *Registry) Parallel() []Stage {
	var out []Stage
	for id := range r.stages {
		if IsParallel(id) {
			out = append(out, r.stages[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered stages.
func (r *Registry) Len() int {
	return len(r.stages)
}
