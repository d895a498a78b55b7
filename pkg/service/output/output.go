package output

import (
	"context"
	"encoding/json"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// StatsFileName is written next to the summaries after every run
const StatsFileName = "processing_stats.json"

// Service renders summaries and run statistics and hands them to a Writer
type Service struct {
	writer Writer
}

func New(w Writer) *Service {
	return &Service{writer: w}
}

// FileName is the summary file name of doc
func FileName(doc *model.Document) string {
	return doc.ID.OutputName() + ".md"
}

// WriteSummary renders and writes the summary of doc, returning the written path
func (s *Service) WriteSummary(ctx context.Context, doc *model.Document, summary *model.MeetingSummary) (string, error) {
	data, err := Render(doc, summary)
	if err != nil {
		return "", err
	}

	dst, err := s.writer.Write(ctx, FileName(doc), data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to write summary", goerr.V(model.DocumentKeyKey, doc.ID.Key()))
	}

	logging.From(ctx).Info("summary written", "path", dst, "bytes", len(data))
	return dst, nil
}

// WriteStats writes the run result as processing_stats.json
func (s *Service) WriteStats(ctx context.Context, result *model.RunResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal run statistics")
	}
	dst, err := s.writer.Write(ctx, StatsFileName, data)
	if err != nil {
		return "", goerr.Wrap(err, "failed to write run statistics", goerr.V("run_id", result.RunID))
	}
	return dst, nil
}

func (s *Service) Close() error {
	return s.writer.Close()
}
