package model

import "time"

// RunID identifies one invocation of the pipeline
type RunID string

// ChunkFailure records a tolerated chunk-level failure
type ChunkFailure struct {
	Stage string `json:"stage"`
	Index int    `json:"index"`
	Error string `json:"error"`
}

// DocumentReport is the per-document outcome of a run
type DocumentReport struct {
	DocumentKey   string         `json:"document_key"`
	Source        string         `json:"source"`
	Status        string         `json:"status"`
	OutputPath    string         `json:"output_path,omitempty"`
	Characters    int            `json:"characters"`
	Chunks        int            `json:"chunks"`
	Batches       int            `json:"batches"`
	APICalls      int64          `json:"api_calls"`
	CacheHits     int64          `json:"cache_hits"`
	ChunkFailures []ChunkFailure `json:"chunk_failures,omitempty"`
	Error         string         `json:"error,omitempty"`
	Elapsed       time.Duration  `json:"elapsed_ns"`
}

// Document report statuses
const (
	DocumentStatusSucceeded = "succeeded"
	DocumentStatusFailed    = "failed"
	DocumentStatusSkipped   = "skipped"
	DocumentStatusPlanned   = "planned"
)

// RunResult summarizes one run across all documents
type RunResult struct {
	RunID      RunID            `json:"run_id"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	DryRun     bool             `json:"dry_run"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Skipped    int              `json:"skipped"`
	Documents  []DocumentReport `json:"documents"`
}

// Add appends a report and updates the counters
func (r *RunResult) Add(rep DocumentReport) {
	r.Documents = append(r.Documents, rep)
	switch rep.Status {
	case DocumentStatusSucceeded:
		r.Succeeded++
	case DocumentStatusFailed:
		r.Failed++
	case DocumentStatusSkipped:
		r.Skipped++
	}
}

// Failures returns the failed document reports
func (r *RunResult) Failures() []DocumentReport {
	var out []DocumentReport
	for _, d := range r.Documents {
		if d.Status == DocumentStatusFailed {
			out = append(out, d)
		}
	}
	return out
}

// DocumentPlan is what a dry run reports for one document
type DocumentPlan struct {
	DocumentKey     string `json:"document_key"`
	Source          string `json:"source"`
	Characters      int    `json:"characters"`
	EstimatedTokens int    `json:"estimated_tokens"`
	Chunks          int    `json:"chunks"`
	Batches         int    `json:"batches"`
	EstimatedCalls  int    `json:"estimated_calls"`
	Skip            bool   `json:"skip"`
	Reason          string `json:"reason,omitempty"`
}
