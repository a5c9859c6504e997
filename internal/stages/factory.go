// -----------------------------------------------------------------------
// Stage Factory - Builds the canonical pipeline registry
// -----------------------------------------------------------------------

package stages

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/common"
	"github.com/ternarybob/scriptor/internal/interfaces"
	"github.com/ternarybob/scriptor/internal/pipeline"
)

// Deps carries the collaborators the stages are wired with. Config, LLM,
// Renderer, and Artifacts are mandatory; the rest may be nil and the owning
// stage degrades accordingly (no liveness probe, no images, no links, no
// similarity check).
type Deps struct {
	Config     *common.Config
	LLM        interfaces.LLMService
	Images     interfaces.ImageService
	Links      interfaces.LinkProvider
	Validator  interfaces.URLValidator
	Renderer   interfaces.Renderer
	Artifacts  interfaces.ArtifactStorage
	Similarity interfaces.SimilarityChecker
	Prompts    *PromptLibrary
	Logger     arbor.ILogger
}

// BuildRegistry constructs one stage per canonical id and validates the set
// through the pipeline registry. Configuration faults surface here, before
// any job runs.
func BuildRegistry(deps Deps) (*pipeline.Registry, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("stage registry: config is required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("stage registry: llm service is required")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("stage registry: renderer is required")
	}
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("stage registry: artifact storage is required")
	}
	if deps.Prompts == nil {
		prompts, err := LoadPromptLibrary(deps.Config.Prompts.Path, deps.Logger)
		if err != nil {
			return nil, err
		}
		deps.Prompts = prompts
	}

	imageRequired := deps.Config.Images.Enabled && deps.Images != nil && deps.Images.Enabled()

	stages := []pipeline.Stage{
		NewDataFetchStage(deps.Logger),
		NewPromptBuildStage(deps.Prompts, deps.Logger),
		NewGenerateStage(deps.LLM, deps.Logger),
		NewExtractStage(deps.LLM, deps.Prompts, deps.Logger),
		NewRefineStage(deps.LLM, deps.Prompts, deps.Logger),
		NewCitationsStage(deps.Logger),
		NewInternalLinksStage(deps.Links, deps.Config.Links.MaxCandidates, deps.Logger),
		NewTOCStage(deps.Logger),
		NewMetadataStage(deps.LLM, deps.Prompts, deps.Logger),
		NewFAQStage(deps.LLM, deps.Prompts, deps.Logger),
		NewImageStage(deps.Images, deps.Logger),
		NewMergeStage(deps.Validator, imageRequired, deps.Logger),
		NewPersistStage(deps.Renderer, deps.Artifacts, deps.Logger),
		NewSimilarityStage(deps.Similarity, deps.Logger),
	}
	return pipeline.NewRegistry(stages)
}
