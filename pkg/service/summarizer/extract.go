package summarizer

import (
	"context"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// runChunkStages runs extraction and mini summaries over every batch. Both stages share the
// limiter, so they are started together and each is bounded by the worker count.
func (s *Summarizer) runChunkStages(ctx context.Context, batches []model.Batch) ([]model.ExtractionResult, []model.MiniSummary, []model.ChunkFailure) {
	var (
		extractions []model.ExtractionResult
		minis       []model.MiniSummary
		extractFail []model.ChunkFailure
		miniFail    []model.ChunkFailure
	)

	var eg errgroup.Group
	eg.Go(func() error {
		extractions, extractFail = fanOut(ctx, s, batches, types.StageExtract, s.extract)
		return nil
	})
	eg.Go(func() error {
		minis, miniFail = fanOut(ctx, s, batches, types.StageMini, s.mini)
		return nil
	})
	_ = eg.Wait()

	return extractions, minis, append(extractFail, miniFail...)
}

func (s *Summarizer) extract(ctx context.Context, b model.Batch) (model.ExtractionResult, error) {
	req := s.request(types.StageExtract, SchemaExtraction, extractPrompt(b.Text()), extractMaxToken)
	out := model.ExtractionResult{ChunkIndex: b.FirstIndex()}
	if err := s.generateJSON(ctx, req, &out); err != nil {
		return model.ExtractionResult{ChunkIndex: b.FirstIndex()}, err
	}
	out.ChunkIndex = b.FirstIndex()
	out.Normalize()
	return out, nil
}

func (s *Summarizer) mini(ctx context.Context, b model.Batch) (model.MiniSummary, error) {
	req := s.request(types.StageMini, SchemaMiniSummary, miniPrompt(b.Text()), miniMaxToken)
	out := model.MiniSummary{ChunkIndex: b.FirstIndex()}
	if err := s.generateJSON(ctx, req, &out); err != nil {
		return model.MiniSummary{ChunkIndex: b.FirstIndex()}, err
	}
	out.ChunkIndex = b.FirstIndex()
	out.Normalize()
	return out, nil
}

// workers is min(ceiling, batches, maxWorkers), at least 1
func (s *Summarizer) workers(batches int) int {
	n := s.maxWorkers
	if s.ceiling != nil {
		n = min(n, s.ceiling.Ceiling())
	}
	n = min(n, batches)
	return max(n, 1)
}

// fanOut calls fn for every batch with bounded concurrency. Results are written by batch
// index so completion order never affects output order; a failed batch leaves its zero
// result and a recorded failure while siblings continue.
func fanOut[T any](ctx context.Context, s *Summarizer, batches []model.Batch, stage types.Stage, fn func(context.Context, model.Batch) (T, error)) ([]T, []model.ChunkFailure) {
	results := make([]T, len(batches))
	errs := make([]error, len(batches))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers(len(batches)))

	for i, b := range batches {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			out, err := fn(ctx, b)
			results[i] = out
			errs[i] = err
			return nil
		})
	}
	_ = eg.Wait()

	var failures []model.ChunkFailure
	for i, err := range errs {
		if err == nil {
			continue
		}
		logging.From(ctx).Warn("chunk stage failed",
			"stage", stage,
			"batch", i,
			"error", err.Error())
		failures = append(failures, model.ChunkFailure{
			Stage: stage.String(),
			Index: batches[i].FirstIndex(),
			Error: err.Error(),
		})
	}
	return results, failures
}
