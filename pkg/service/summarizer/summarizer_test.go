package summarizer_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/service/dedupe"
	"github.com/db4dd/db4dd/pkg/service/summarizer"
	"github.com/m-mizutani/gt"
)

var markerPattern = regexp.MustCompile(`<<(\d{2})>>`)

type fixedCeiling int

func (c fixedCeiling) Ceiling() int { return int(c) }

// fakeGenerator answers by stage, keyed on the chunk marker found in the prompt
type fakeGenerator struct {
	mu       sync.Mutex
	inFlight map[types.Stage]int
	peak     map[types.Stage]int
	calls    map[types.Stage]int

	delay  func() time.Duration
	fail   func(stage types.Stage, marker string) error
	final  string
	prompt map[types.Stage][]string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		inFlight: map[types.Stage]int{},
		peak:     map[types.Stage]int{},
		calls:    map[types.Stage]int{},
		prompt:   map[types.Stage][]string{},
		final: `{
			"summary": "予算の見直しについて議論した。",
			"main_arguments": ["a1","a2","a3","a4","a5","a6","a7","a8","a9","a10"],
			"discussion_flow": "まず予算について議論された。",
			"action_items": [],
			"open_issues": ["課題A", "課題A", "課題B"],
			"named_entities": [],
			"tags": ["t1","t2","t3","t4","t5","t6"]
		}`,
	}
}

func (f *fakeGenerator) Generate(ctx context.Context, req model.LLMRequest) (string, error) {
	f.mu.Lock()
	f.calls[req.Stage]++
	f.inFlight[req.Stage]++
	f.peak[req.Stage] = max(f.peak[req.Stage], f.inFlight[req.Stage])
	f.prompt[req.Stage] = append(f.prompt[req.Stage], req.Prompt)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight[req.Stage]--
		f.mu.Unlock()
	}()

	if f.delay != nil {
		select {
		case <-time.After(f.delay()):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	marker := ""
	if m := markerPattern.FindStringSubmatch(req.Prompt); m != nil {
		marker = m[1]
	}
	if f.fail != nil {
		if err := f.fail(req.Stage, marker); err != nil {
			return "", err
		}
	}

	switch req.Stage {
	case types.StageExtract:
		return fmt.Sprintf(`{"named_entities":["Org%s"],"numbers":["%s00円"],"todos":["task %s"]}`, marker, marker, marker), nil
	case types.StageMini:
		return fmt.Sprintf(`{"sections":[{"title":"議題","content":"chunk %s discussed"},{"title":"","content":"misc %s"}]}`, marker, marker), nil
	case types.StageDeep:
		return `{"sections":[{"title":"開催目的","content":"予算の確認"}]}`, nil
	case types.StageFinal:
		return f.final, nil
	}
	return "", errors.New("unexpected stage")
}

func (f *fakeGenerator) callCount(stage types.Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[stage]
}

// markedDocument builds n chunks of 1000 runes, each starting with <<NN>>
func markedDocument(t *testing.T, n int) *model.Document {
	t.Helper()
	var b strings.Builder
	for i := range n {
		marker := fmt.Sprintf("<<%02d>>", i)
		b.WriteString(marker)
		b.WriteString(strings.Repeat("あ", 1000-len(marker)))
	}
	id := model.DocumentID{MeetingName: "予算会議", Round: 3, Date: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)}
	doc, err := model.NewDocument(id, b.String(), "予算会議_第3回_20240401.txt")
	gt.NoError(t, err).Required()
	return doc
}

func newSummarizer(t *testing.T, gen summarizer.Generator, ceiling int) *summarizer.Summarizer {
	t.Helper()
	d, err := dedupe.New()
	gt.NoError(t, err).Required()
	return summarizer.New(gen, d, fixedCeiling(ceiling), 2000)
}

func TestSummarizePreservesChunkOrder(t *testing.T) {
	gen := newFakeGenerator()
	gen.delay = func() time.Duration {
		return time.Duration(rand.IntN(20)) * time.Millisecond
	}
	doc := markedDocument(t, 20)
	s := newSummarizer(t, gen, 8)

	summary, report, err := s.Summarize(context.Background(), doc)
	gt.NoError(t, err).Required()
	gt.Value(t, report.Chunks).Equal(20)
	gt.Value(t, report.Batches).Equal(20)
	gt.A(t, report.Failures).Length(0)

	var want []string
	for i := range 20 {
		want = append(want, fmt.Sprintf("chunk %02d discussed", i))
	}
	gt.Bool(t, strings.Contains(summary.Outline, "### 議題\n"+strings.Join(want, "\n")+"\n")).True()

	var misc []string
	for i := range 20 {
		misc = append(misc, fmt.Sprintf("misc %02d", i))
	}
	gt.Bool(t, strings.Contains(summary.Outline, "### その他\n"+strings.Join(misc, "\n")+"\n")).True()

	// deep analysis comes after the combined sections
	gt.Bool(t, strings.Index(summary.Outline, "### その他") < strings.Index(summary.Outline, "### 開催目的")).True()
	gt.Bool(t, strings.Contains(summary.Outline, "人物・組織: Org00, Org01, Org02")).True()

	gt.Value(t, gen.callCount(types.StageExtract)).Equal(20)
	gt.Value(t, gen.callCount(types.StageMini)).Equal(20)
	gt.Value(t, gen.callCount(types.StageDeep)).Equal(1)
	gt.Value(t, gen.callCount(types.StageFinal)).Equal(1)
}

func TestSummarizeRespectsCeiling(t *testing.T) {
	gen := newFakeGenerator()
	gen.delay = func() time.Duration { return 5 * time.Millisecond }
	s := newSummarizer(t, gen, 3)

	_, _, err := s.Summarize(context.Background(), markedDocument(t, 20))
	gt.NoError(t, err).Required()

	gen.mu.Lock()
	defer gen.mu.Unlock()
	gt.Number(t, gen.peak[types.StageExtract]).LessOrEqual(3)
	gt.Number(t, gen.peak[types.StageMini]).LessOrEqual(3)
}

func TestSummarizeNormalizesFinalSummary(t *testing.T) {
	gen := newFakeGenerator()
	s := newSummarizer(t, gen, 4)

	summary, _, err := s.Summarize(context.Background(), markedDocument(t, 12))
	gt.NoError(t, err).Required()

	gt.A(t, summary.MainArguments).Length(model.MaxMainArguments)
	gt.A(t, summary.Tags).Length(model.MaxTags)
	gt.Value(t, summary.OpenIssues).Equal([]string{"課題A", "課題B"})

	// empty lists fall back to the aggregated extraction results
	gt.A(t, summary.NamedEntities).Length(model.MaxNamedEntities)
	gt.Value(t, summary.NamedEntities[0]).Equal("Org00")
	gt.A(t, summary.ActionItems).Length(model.MaxActionItems)
	gt.Value(t, summary.ActionItems[0]).Equal("task 00")
	gt.NoError(t, summary.Validate())

	// the final prompt carries the meeting title and the outline
	gen.mu.Lock()
	defer gen.mu.Unlock()
	gt.A(t, gen.prompt[types.StageFinal]).Length(1)
	gt.Bool(t, strings.Contains(gen.prompt[types.StageFinal][0], "予算会議 第3回")).True()
	gt.Bool(t, strings.Contains(gen.prompt[types.StageFinal][0], "主要セクション:")).True()
}

func TestSummarizeToleratesChunkFailures(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail = func(stage types.Stage, marker string) error {
		if stage == types.StageMini && marker == "03" {
			return errors.New("permanent failure")
		}
		if stage == types.StageExtract && marker == "05" {
			return errors.New("permanent failure")
		}
		return nil
	}
	s := newSummarizer(t, gen, 4)

	summary, report, err := s.Summarize(context.Background(), markedDocument(t, 10))
	gt.NoError(t, err).Required()
	gt.A(t, report.Failures).Length(2)

	got := map[string]int{}
	for _, f := range report.Failures {
		got[f.Stage] = f.Index
	}
	gt.Value(t, got["mini"]).Equal(3)
	gt.Value(t, got["extract"]).Equal(5)

	gt.Bool(t, strings.Contains(summary.Outline, "chunk 03 discussed")).False()
	gt.Bool(t, strings.Contains(summary.Outline, "chunk 04 discussed")).True()
	gt.Bool(t, strings.Contains(summary.Outline, "Org05")).False()
}

func TestSummarizeProceedsWhenAllChunksFail(t *testing.T) {
	gen := newFakeGenerator()
	gen.fail = func(stage types.Stage, _ string) error {
		if stage == types.StageMini || stage == types.StageExtract {
			return errors.New("permanent failure")
		}
		return nil
	}
	s := newSummarizer(t, gen, 4)

	summary, report, err := s.Summarize(context.Background(), markedDocument(t, 4))
	gt.NoError(t, err).Required()
	gt.A(t, report.Failures).Length(8)
	gt.Bool(t, strings.Contains(summary.Outline, "### 開催目的")).True()
}

func TestSummarizeFailsDocumentOnLaterStages(t *testing.T) {
	for _, stage := range []types.Stage{types.StageDeep, types.StageFinal} {
		t.Run(stage.String(), func(t *testing.T) {
			gen := newFakeGenerator()
			gen.fail = func(s types.Stage, _ string) error {
				if s == stage {
					return errors.New("retries exhausted")
				}
				return nil
			}
			s := newSummarizer(t, gen, 4)

			summary, _, err := s.Summarize(context.Background(), markedDocument(t, 4))
			gt.Error(t, err)
			gt.Bool(t, errors.Is(err, summarizer.ErrStageFailed)).True()
			gt.Bool(t, strings.Contains(err.Error(), stage.String())).True()
			gt.Value(t, summary).Nil()
		})
	}
}

func TestSummarizeRejectsEmptyOverview(t *testing.T) {
	gen := newFakeGenerator()
	gen.final = `{"summary":"  ","main_arguments":[],"discussion_flow":"","action_items":[],"open_issues":[],"named_entities":[],"tags":[]}`
	s := newSummarizer(t, gen, 4)

	_, _, err := s.Summarize(context.Background(), markedDocument(t, 2))
	gt.Bool(t, errors.Is(err, summarizer.ErrStageFailed)).True()
	gt.Bool(t, errors.Is(err, model.ErrEmptyOverview)).True()
}

func TestSummarizeStopsOnCancellation(t *testing.T) {
	gen := newFakeGenerator()
	gen.delay = func() time.Duration { return time.Second }
	s := newSummarizer(t, gen, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, _, err := s.Summarize(ctx, markedDocument(t, 10))
	gt.Bool(t, errors.Is(err, context.DeadlineExceeded)).True()
	gt.Value(t, gen.callCount(types.StageDeep)).Equal(0)
}

func TestPlan(t *testing.T) {
	s := newSummarizer(t, newFakeGenerator(), 4)
	plan := s.Plan(markedDocument(t, 10))

	gt.Value(t, plan.DocumentKey).Equal("予算会議_第03回_20240401")
	gt.Value(t, plan.Characters).Equal(10000)
	gt.Value(t, plan.Chunks).Equal(10)
	gt.Value(t, plan.Batches).Equal(10)
	gt.Value(t, plan.EstimatedCalls).Equal(22)
}

func TestSchemasCoverEveryStage(t *testing.T) {
	schemas := summarizer.Schemas()
	for _, name := range []string{
		summarizer.SchemaExtraction,
		summarizer.SchemaMiniSummary,
		summarizer.SchemaDeepAnalysis,
		summarizer.SchemaMeetingSummary,
	} {
		schema, ok := schemas[name]
		gt.Bool(t, ok).True()
		raw, err := json.Marshal(schema)
		gt.NoError(t, err)
		gt.Bool(t, len(raw) > 0).True()
	}
}
