package model

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
)

var filenamePattern = regexp.MustCompile(`^(.+?)_第(\d+)回_(\d{8})(?:_(.*))?$`)

// DocumentID identifies one meeting document: {meeting_name}_第{N}回_{YYYYMMDD}_{optional_suffix}
type DocumentID struct {
	MeetingName string
	Round       int
	Date        time.Time
	Suffix      string
}

// ParseDocumentID parses a file name (directory and extension are ignored)
func ParseDocumentID(filename string) (DocumentID, error) {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return DocumentID{}, goerr.Wrap(ErrInvalidFilename, "unrecognized document name", goerr.V(FilenameKey, filename))
	}

	round, err := strconv.Atoi(m[2])
	if err != nil || round <= 0 {
		return DocumentID{}, goerr.Wrap(ErrInvalidFilename, "invalid round number", goerr.V(FilenameKey, filename))
	}

	date, err := time.Parse("20060102", m[3])
	if err != nil {
		return DocumentID{}, goerr.Wrap(ErrInvalidFilename, "invalid meeting date", goerr.V(FilenameKey, filename))
	}

	return DocumentID{
		MeetingName: m[1],
		Round:       round,
		Date:        date,
		Suffix:      m[4],
	}, nil
}

// Key returns the stable ledger key
func (id DocumentID) Key() string {
	key := fmt.Sprintf("%s_第%02d回_%s", id.MeetingName, id.Round, id.Date.Format("20060102"))
	if id.Suffix != "" {
		key += "_" + id.Suffix
	}
	return key
}

// OutputName returns the summary file name without extension. Documents of the same meeting
// and date that differ by suffix get distinct names.
func (id DocumentID) OutputName() string {
	name := fmt.Sprintf("%s_第%02d回_%s", id.MeetingName, id.Round, id.Date.Format("2006-01-02"))
	if id.Suffix != "" {
		name += "_" + id.Suffix
	}
	return name
}

// Title is the human readable heading of the document
func (id DocumentID) Title() string {
	return fmt.Sprintf("%s 第%d回 (%s)", id.MeetingName, id.Round, id.Date.Format("2006-01-02"))
}

// Document is the raw text of one meeting plus its identifier. It is not modified after NewDocument.
type Document struct {
	ID     DocumentID
	Text   string
	Source string
}

// NewDocument validates and builds a document
func NewDocument(id DocumentID, text, source string) (*Document, error) {
	if id.MeetingName == "" || id.Round <= 0 || id.Date.IsZero() {
		return nil, goerr.Wrap(ErrInvalidDocument, "incomplete document identifier", goerr.V(SourceKey, source))
	}
	if strings.TrimSpace(text) == "" {
		return nil, goerr.Wrap(ErrEmptyText, "no text to summarize",
			goerr.V(SourceKey, source),
			goerr.V(DocumentKeyKey, id.Key()))
	}
	if !utf8.ValidString(text) {
		return nil, goerr.Wrap(ErrInvalidDocument, "text is not valid UTF-8", goerr.V(SourceKey, source))
	}

	return &Document{ID: id, Text: text, Source: source}, nil
}

// Characters returns the length of the text in runes
func (d *Document) Characters() int {
	return utf8.RuneCountInString(d.Text)
}

// EstimatedTokens is the rough token count used for chunking and rate budgeting
func (d *Document) EstimatedTokens() int {
	return EstimateTokens(d.Text)
}

// EstimateTokens approximates tokens as characters / 4
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}
