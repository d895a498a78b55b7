package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	// ErrDocumentsFailed is returned by a run in which at least one document failed
	ErrDocumentsFailed = goerr.New("one or more documents failed")

	// ErrCancelledBeforeCommit marks a document whose run was cancelled before its summary was committed
	ErrCancelledBeforeCommit = goerr.New("cancelled before commit")
)

// Context keys for error values
const (
	RunIDKey = "run_id"
	PathKey  = "path"
)
