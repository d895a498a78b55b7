package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/service/ledger"
	"github.com/db4dd/db4dd/pkg/service/llm"
	"github.com/db4dd/db4dd/pkg/service/output"
	"github.com/db4dd/db4dd/pkg/service/source"
	"github.com/db4dd/db4dd/pkg/service/summarizer"
	"github.com/db4dd/db4dd/pkg/utils/errutil"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the number of documents processed concurrently
const DefaultWorkers = 4

// Summarizer turns a document into a meeting summary
type Summarizer interface {
	Summarize(ctx context.Context, doc *model.Document) (*model.MeetingSummary, *summarizer.Report, error)
	Plan(doc *model.Document) model.DocumentPlan
}

// SummarizeUseCase runs the pipeline over a set of input files
type SummarizeUseCase struct {
	summarizer Summarizer
	ledger     *ledger.Service
	output     *output.Service
	workers    int
	overwrite  bool
	writeStats bool
	now        func() time.Time

	// slots is shared by every Run, so overlapping runs stay within workers
	slots *semaphore.Weighted
}

type Option func(*SummarizeUseCase)

// WithWorkers bounds how many documents are processed at once, across all concurrent runs
func WithWorkers(n int) Option {
	return func(uc *SummarizeUseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

// WithOverwrite reprocesses documents already marked in the ledger
func WithOverwrite(overwrite bool) Option {
	return func(uc *SummarizeUseCase) {
		uc.overwrite = overwrite
	}
}

// WithStatsFile controls whether processing_stats.json is written after a run
func WithStatsFile(enabled bool) Option {
	return func(uc *SummarizeUseCase) {
		uc.writeStats = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(uc *SummarizeUseCase) {
		uc.now = now
	}
}

func NewSummarizeUseCase(s Summarizer, ledgerSvc *ledger.Service, outputSvc *output.Service, opts ...Option) *SummarizeUseCase {
	uc := &SummarizeUseCase{
		summarizer: s,
		ledger:     ledgerSvc,
		output:     outputSvc,
		workers:    DefaultWorkers,
		writeStats: true,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	uc.slots = semaphore.NewWeighted(int64(uc.workers))
	return uc
}

// Run processes every path and returns the per-document outcome. A failed document never
// stops its siblings; the returned error is non-nil only when the run itself could not complete.
func (uc *SummarizeUseCase) Run(ctx context.Context, paths []string) (*model.RunResult, error) {
	result := &model.RunResult{
		RunID:     model.RunID(uuid.NewString()),
		StartedAt: uc.now(),
	}
	logger := logging.From(ctx).With(RunIDKey, result.RunID)
	ctx = logging.With(ctx, logger)

	logger.Info("run started", "documents", len(paths), "workers", uc.workers, "overwrite", uc.overwrite)

	reports := make([]model.DocumentReport, len(paths))
	var eg errgroup.Group
	for i, path := range paths {
		eg.Go(func() error {
			if err := uc.slots.Acquire(ctx, 1); err != nil {
				reports[i] = model.DocumentReport{
					Source: filepath.Base(path),
					Status: model.DocumentStatusFailed,
					Error:  fmt.Errorf("%w: %w", ErrCancelledBeforeCommit, err).Error(),
				}
				return nil
			}
			defer uc.slots.Release(1)

			reports[i] = uc.process(ctx, path)
			return nil
		})
	}
	_ = eg.Wait()

	for _, rep := range reports {
		result.Add(rep)
	}
	result.FinishedAt = uc.now()

	if uc.writeStats && len(paths) > 0 {
		if dst, err := uc.output.WriteStats(context.WithoutCancel(ctx), result); err != nil {
			errutil.Handle(ctx, err, "failed to write run statistics")
		} else {
			logger.Info("run statistics written", "path", dst)
		}
	}

	logger.Info("run finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"elapsed", result.FinishedAt.Sub(result.StartedAt).String())

	if err := ctx.Err(); err != nil {
		return result, goerr.Wrap(err, "run interrupted", goerr.V(RunIDKey, result.RunID))
	}
	return result, nil
}

func (uc *SummarizeUseCase) process(ctx context.Context, path string) model.DocumentReport {
	start := uc.now()
	rep := model.DocumentReport{Source: filepath.Base(path)}
	finish := func(status string, err error) model.DocumentReport {
		rep.Status = status
		rep.Elapsed = uc.now().Sub(start)
		if err != nil {
			rep.Error = err.Error()
		}
		return rep
	}

	doc, err := source.Load(path)
	if err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "rejected input", goerr.V(PathKey, path)), "document rejected")
		return finish(model.DocumentStatusFailed, err)
	}
	key := doc.ID.Key()
	rep.DocumentKey = key
	rep.Characters = doc.Characters()

	logger := logging.From(ctx).With(model.DocumentKeyKey, key)
	ctx = logging.With(ctx, logger)

	unlock := uc.ledger.Lock(key)
	defer unlock()

	if !uc.overwrite {
		done, err := uc.ledger.IsProcessed(ctx, key)
		if err != nil {
			errutil.Handle(ctx, err, "ledger lookup failed")
			return finish(model.DocumentStatusFailed, err)
		}
		if done {
			logger.Info("document already processed, skipping")
			return finish(model.DocumentStatusSkipped, nil)
		}
	}

	usage := &llm.Usage{}
	summary, srep, err := uc.summarizer.Summarize(llm.WithUsage(ctx, usage), doc)
	rep.APICalls = usage.Calls()
	rep.CacheHits = usage.CacheHits()
	if srep != nil {
		rep.Chunks = srep.Chunks
		rep.Batches = srep.Batches
		rep.ChunkFailures = srep.Failures
	}
	if err != nil {
		if ctx.Err() == nil {
			errutil.Handle(ctx, err, "document failed")
		}
		return finish(model.DocumentStatusFailed, err)
	}

	if err := ctx.Err(); err != nil {
		return finish(model.DocumentStatusFailed, fmt.Errorf("%w: %w", ErrCancelledBeforeCommit, err))
	}

	dst, err := uc.output.WriteSummary(ctx, doc, summary)
	if err != nil {
		errutil.Handle(ctx, err, "failed to write summary")
		return finish(model.DocumentStatusFailed, err)
	}
	rep.OutputPath = dst

	// the ledger is the commit point: never mark a document whose run was cancelled before the write returned
	if err := ctx.Err(); err != nil {
		logger.Warn("cancelled before commit, summary left unmarked", "path", dst)
		return finish(model.DocumentStatusFailed, fmt.Errorf("%w: %w", ErrCancelledBeforeCommit, err))
	}
	if err := uc.ledger.MarkProcessed(context.WithoutCancel(ctx), key, dst); err != nil {
		errutil.Handle(ctx, err, "failed to commit document")
		return finish(model.DocumentStatusFailed, err)
	}

	logger.Info("document processed",
		"output", dst,
		"api_calls", rep.APICalls,
		"cache_hits", rep.CacheHits,
		"chunk_failures", len(rep.ChunkFailures))
	return finish(model.DocumentStatusSucceeded, nil)
}

// Plan reports what a run over paths would do without calling the LLM
func (uc *SummarizeUseCase) Plan(ctx context.Context, paths []string) ([]model.DocumentPlan, error) {
	plans := make([]model.DocumentPlan, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return plans, goerr.Wrap(err, "plan interrupted")
		}

		doc, err := source.Load(path)
		if err != nil {
			plans = append(plans, model.DocumentPlan{
				Source: filepath.Base(path),
				Skip:   true,
				Reason: invalidReason(err),
			})
			continue
		}

		plan := uc.summarizer.Plan(doc)
		if !uc.overwrite {
			done, err := uc.ledger.IsProcessed(ctx, plan.DocumentKey)
			if err != nil {
				return plans, err
			}
			if done {
				plan.Skip = true
				plan.Reason = "already processed"
			}
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func invalidReason(err error) string {
	switch {
	case errors.Is(err, model.ErrInvalidFilename):
		return "invalid file name"
	case errors.Is(err, model.ErrEmptyText):
		return "empty text"
	default:
		return "invalid document: " + err.Error()
	}
}

// Failed converts a run result with failures into ErrDocumentsFailed
func Failed(result *model.RunResult) error {
	if result == nil || result.Failed == 0 {
		return nil
	}
	keys := make([]string, 0, result.Failed)
	for _, d := range result.Failures() {
		keys = append(keys, d.Source)
	}
	return goerr.Wrap(ErrDocumentsFailed, "run had failures",
		goerr.V("failed", result.Failed),
		goerr.V("sources", keys),
		goerr.V(RunIDKey, result.RunID))
}
