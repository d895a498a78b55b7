package model

import "github.com/m-mizutani/goerr/v2"

// Input and lookup errors
var (
	ErrInvalidDocument = goerr.New("invalid document")
	ErrEmptyText       = goerr.New("document text is empty")
	ErrInvalidFilename = goerr.New("filename does not match meeting document pattern")
	ErrEmptyOverview   = goerr.New("summary overview is empty")
)

// Context keys for error values
const (
	FilenameKey    = "filename"
	DocumentKeyKey = "document_key"
	SourceKey      = "source"
)
