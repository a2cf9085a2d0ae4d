package pipeline

import (
	"context"

	"github.com/siherrmann/mapper/model"
)

// GenerateFunc sends a prompt to a text generation service and returns the reply text.
// Any error is treated as a service failure of the batch that issued the prompt.
type GenerateFunc func(ctx context.Context, prompt string) (string, error)

// PromptFunc renders the prompt for one batch of sources against the target list.
type PromptFunc func(batch model.Batch, targets []model.Entity, extraContext string) string

// ParseFunc turns a free-text reply into candidates. It never fails, unusable lines are dropped.
type ParseFunc func(text string) []model.Candidate

// ValidateFunc keeps only candidates whose ids exist in the given sets.
type ValidateFunc func(candidates []model.Candidate, knownSources, knownTargets map[string]struct{}) ([]*model.Relationship, model.ValidationReport)

// EmbedFunc is a function that generates embeddings for text
type EmbedFunc func(text string) ([]float32, error)

// ShortlistFunc narrows the targets sent with a batch to the k most relevant ones.
type ShortlistFunc func(ctx context.Context, batch model.Batch, targets []model.Entity, k int) ([]model.Entity, error)

// Pipeline combines the per-batch steps of a mapping run
type Pipeline struct {
	Prompter    PromptFunc
	Generator   GenerateFunc
	Parser      ParseFunc
	Validator   ValidateFunc
	Shortlister ShortlistFunc // Optional
}

// NewPipeline creates a pipeline with the default prompt, parser and validator
func NewPipeline(generator GenerateFunc) *Pipeline {
	return &Pipeline{
		Prompter:  NewPromptBuilder(DefaultPromptTemplate),
		Generator: generator,
		Parser:    ParseResponse,
		Validator: Validate,
	}
}

// SetPrompter sets the prompt function
func (p *Pipeline) SetPrompter(prompter PromptFunc) {
	p.Prompter = prompter
}

// SetShortlister sets the target shortlist function
// It is only used when a run asks for a shortlist size above zero
func (p *Pipeline) SetShortlister(shortlister ShortlistFunc) {
	p.Shortlister = shortlister
}

// BatchInput is everything needed to process one batch.
type BatchInput struct {
	Batch        model.Batch
	Targets      []model.Entity
	KnownSources map[string]struct{}
	KnownTargets map[string]struct{}
	ExtraContext string
	Shortlist    int
}

// BatchResult contains the validated relationships of one batch
type BatchResult struct {
	Batch         model.Batch
	Prompt        string
	Response      string
	Candidates    []model.Candidate
	Relationships []*model.Relationship
	Report        model.ValidationReport
}

// ProcessBatch runs one batch through shortlist, prompt, generation, parsing and validation.
// Shortlist and generation errors are returned as service errors.
// Unset prompt, parse and validate steps fall back to the defaults of NewPipeline.
func (p *Pipeline) ProcessBatch(ctx context.Context, input BatchInput) (*BatchResult, error) {
	if p.Generator == nil {
		return nil, model.NewInputError("no text generation service configured")
	}
	prompter, parser, validator := p.Prompter, p.Parser, p.Validator
	if prompter == nil {
		prompter = NewPromptBuilder(DefaultPromptTemplate)
	}
	if parser == nil {
		parser = ParseResponse
	}
	if validator == nil {
		validator = Validate
	}

	targets := input.Targets
	if p.Shortlister != nil && input.Shortlist > 0 && input.Shortlist < len(targets) {
		shortlisted, err := p.Shortlister(ctx, input.Batch, targets, input.Shortlist)
		if err != nil {
			return nil, model.NewServiceError(err)
		}
		targets = shortlisted
	}

	prompt := prompter(input.Batch, targets, input.ExtraContext)

	response, err := p.Generator(ctx, prompt)
	if err != nil {
		return nil, model.NewServiceError(err)
	}

	candidates := parser(response)
	relationships, report := validator(candidates, input.KnownSources, input.KnownTargets)
	for _, rel := range relationships {
		rel.BatchIndex = input.Batch.Index
	}

	return &BatchResult{
		Batch:         input.Batch,
		Prompt:        prompt,
		Response:      response,
		Candidates:    candidates,
		Relationships: relationships,
		Report:        report,
	}, nil
}
