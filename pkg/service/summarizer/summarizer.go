package summarizer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/service/chunker"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrStageFailed marks a document-level failure in deep analysis, synthesis or the final stage
var ErrStageFailed = goerr.New("summarization stage failed")

const (
	// DefaultMaxWorkers bounds chunk-level fan-out regardless of the limiter ceiling
	DefaultMaxWorkers = 40
	// DefaultTemperature is used by every stage
	DefaultTemperature = 0.3

	deepHeadChars   = 5000
	finalHeadChars  = 2000
	extractMaxToken = 400
	miniMaxToken    = 800
	deepMaxToken    = 1000
	finalMaxToken   = 1500
)

// Generator returns the JSON response text for a request
type Generator interface {
	Generate(ctx context.Context, req model.LLMRequest) (string, error)
}

// Deduper removes near-duplicate entries, keeping order
type Deduper interface {
	Dedupe(items []string) []string
}

// CeilingProvider reports the current concurrency ceiling
type CeilingProvider interface {
	Ceiling() int
}

// Report records chunk-level statistics of one summarization
type Report struct {
	Chunks   int
	Batches  int
	Failures []model.ChunkFailure
}

// Summarizer runs the multi-stage summarization of one document
type Summarizer struct {
	gen         Generator
	dedupe      Deduper
	ceiling     CeilingProvider
	sizeHint    int
	maxWorkers  int
	temperature float64
}

type Option func(*Summarizer)

// WithMaxWorkers overrides the chunk-level worker cap
func WithMaxWorkers(n int) Option {
	return func(s *Summarizer) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// WithTemperature overrides the sampling temperature of every stage
func WithTemperature(t float64) Option {
	return func(s *Summarizer) {
		s.temperature = t
	}
}

func New(gen Generator, dedupe Deduper, ceiling CeilingProvider, sizeHint int, opts ...Option) *Summarizer {
	if sizeHint <= 0 {
		sizeHint = chunker.DefaultSizeHint
	}
	s := &Summarizer{
		gen:         gen,
		dedupe:      dedupe,
		ceiling:     ceiling,
		sizeHint:    sizeHint,
		maxWorkers:  DefaultMaxWorkers,
		temperature: DefaultTemperature,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Plan estimates the work for doc without calling the LLM
func (s *Summarizer) Plan(doc *model.Document) model.DocumentPlan {
	chunks := chunker.Chunk(doc, s.sizeHint)
	batches := chunker.Batch(chunks)
	return model.DocumentPlan{
		DocumentKey:     doc.ID.Key(),
		Source:          doc.Source,
		Characters:      doc.Characters(),
		EstimatedTokens: doc.EstimatedTokens(),
		Chunks:          len(chunks),
		Batches:         len(batches),
		EstimatedCalls:  chunker.EstimateCalls(len(batches)),
	}
}

// Summarize produces the meeting summary of doc. Chunk-level failures are tolerated and
// recorded in the report; any later stage failure fails the document.
func (s *Summarizer) Summarize(ctx context.Context, doc *model.Document) (*model.MeetingSummary, *Report, error) {
	logger := logging.From(ctx).With("document", doc.ID.Key())

	chunks := chunker.Chunk(doc, s.sizeHint)
	batches := chunker.Batch(chunks)
	report := &Report{Chunks: len(chunks), Batches: len(batches)}

	logger.Info("summarization started",
		"characters", doc.Characters(),
		"chunks", len(chunks),
		"batches", len(batches))

	extractions, minis, failures := s.runChunkStages(ctx, batches)
	report.Failures = failures
	if err := ctx.Err(); err != nil {
		return nil, report, goerr.Wrap(err, "summarization cancelled", goerr.V(model.DocumentKeyKey, doc.ID.Key()))
	}
	if len(failures) > 0 {
		logger.Warn("chunk failures tolerated", "count", len(failures))
	}

	deep, err := s.deepAnalysis(ctx, doc)
	if err != nil {
		return nil, report, stageError(types.StageDeep, doc, err)
	}

	sections, agg := s.synthesize(minis, deep, extractions)
	outline := buildOutline(sections, agg)
	if len(sections) == 0 && len(agg.NamedEntities) == 0 && len(agg.Numbers) == 0 && len(agg.ActionItems) == 0 {
		return nil, report, stageError(types.StageSynthesis, doc, goerr.New("nothing to synthesize"))
	}

	summary, err := s.finalSummary(ctx, doc, outline, agg)
	if err != nil {
		return nil, report, stageError(types.StageFinal, doc, err)
	}

	logger.Info("summarization finished",
		"main_arguments", len(summary.MainArguments),
		"action_items", len(summary.ActionItems),
		"failures", len(failures))

	return summary, report, nil
}

func (s *Summarizer) deepAnalysis(ctx context.Context, doc *model.Document) ([]model.Section, error) {
	req := s.request(types.StageDeep, SchemaDeepAnalysis, deepPrompt(head(doc.Text, deepHeadChars)), deepMaxToken)
	var out model.MiniSummary
	if err := s.generateJSON(ctx, req, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	return out.Sections, nil
}

func (s *Summarizer) finalSummary(ctx context.Context, doc *model.Document, outline string, agg model.Aggregates) (*model.MeetingSummary, error) {
	prompt := finalPrompt(doc.ID.Title(), outline, head(doc.Text, finalHeadChars))
	req := s.request(types.StageFinal, SchemaMeetingSummary, prompt, finalMaxToken)

	var summary model.MeetingSummary
	if err := s.generateJSON(ctx, req, &summary); err != nil {
		return nil, err
	}

	if len(summary.NamedEntities) == 0 {
		summary.NamedEntities = append([]string{}, agg.NamedEntities...)
	}
	if len(summary.ActionItems) == 0 {
		summary.ActionItems = append([]string{}, agg.ActionItems...)
	}

	summary.Normalize(s.dedupe.Dedupe)
	if err := summary.Validate(); err != nil {
		return nil, err
	}
	summary.Outline = outline
	return &summary, nil
}

func (s *Summarizer) request(stage types.Stage, schema, prompt string, maxTokens int) model.LLMRequest {
	return model.LLMRequest{
		Stage:        stage,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Temperature:  s.temperature,
		MaxTokens:    maxTokens,
		Schema:       schema,
	}
}

func (s *Summarizer) generateJSON(ctx context.Context, req model.LLMRequest, out any) error {
	text, err := s.gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return goerr.Wrap(err, "failed to decode LLM response", goerr.V("stage", req.Stage))
	}
	return nil
}

func stageError(stage types.Stage, doc *model.Document, err error) error {
	return goerr.Wrap(fmt.Errorf("%w: %s: %w", ErrStageFailed, stage, err), "summarization failed",
		goerr.V("stage", stage),
		goerr.V(model.DocumentKeyKey, doc.ID.Key()))
}

// head returns the first n runes of s
func head(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
