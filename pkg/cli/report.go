package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	skipColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan, color.Bold)
)

// printPlans writes the dry run table
func printPlans(w io.Writer, plans []model.DocumentPlan) {
	_, _ = headColor.Fprintf(w, "Dry run: %d document(s)\n", len(plans))

	var docs, chunks, calls int
	for _, p := range plans {
		if p.Skip {
			_, _ = skipColor.Fprintf(w, "  SKIP  %s (%s)\n", p.Source, p.Reason)
			continue
		}
		docs++
		chunks += p.Chunks
		calls += p.EstimatedCalls
		_, _ = fmt.Fprintf(w, "  PLAN  %s  key=%s chars=%d tokens~%d chunks=%d batches=%d calls~%d\n",
			p.Source, p.DocumentKey, p.Characters, p.EstimatedTokens, p.Chunks, p.Batches, p.EstimatedCalls)
	}

	_, _ = headColor.Fprintf(w, "Would process %d document(s), %d chunk(s), about %d API call(s)\n", docs, chunks, calls)
}

// printResult writes the run summary and one line per document
func printResult(w io.Writer, result *model.RunResult) {
	elapsed := result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond)
	_, _ = headColor.Fprintf(w, "Run %s finished in %s\n", result.RunID, elapsed)

	var calls, hits int64
	for _, d := range result.Documents {
		calls += d.APICalls
		hits += d.CacheHits

		switch d.Status {
		case model.DocumentStatusSucceeded:
			_, _ = okColor.Fprintf(w, "  OK    %s -> %s (calls=%d cache=%d %s)\n",
				d.Source, d.OutputPath, d.APICalls, d.CacheHits, d.Elapsed.Round(time.Millisecond))
			if n := len(d.ChunkFailures); n > 0 {
				_, _ = skipColor.Fprintf(w, "        %d chunk stage(s) failed and were skipped\n", n)
			}
		case model.DocumentStatusSkipped:
			_, _ = skipColor.Fprintf(w, "  SKIP  %s (already processed)\n", d.Source)
		default:
			_, _ = failColor.Fprintf(w, "  FAIL  %s: %s\n", d.Source, d.Error)
		}
	}

	_, _ = fmt.Fprintf(w, "succeeded=%d failed=%d skipped=%d api_calls=%d cache_hits=%d\n",
		result.Succeeded, result.Failed, result.Skipped, calls, hits)
}
