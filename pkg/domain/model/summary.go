package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// List caps applied to stage outputs
const (
	MaxExtractionItems = 10

	MaxAggregatedEntities = 20
	MaxAggregatedNumbers  = 15
	MaxAggregatedActions  = 15

	MaxMainArguments = 8
	MaxActionItems   = 5
	MaxOpenIssues    = 5
	MaxNamedEntities = 10
	MaxTags          = 5
)

// DedupeFunc removes near-duplicate entries from a list, keeping order
type DedupeFunc func([]string) []string

// ExtractionResult holds facts extracted from one chunk or batch
type ExtractionResult struct {
	ChunkIndex    int      `json:"-"`
	NamedEntities []string `json:"named_entities"`
	Numbers       []string `json:"numbers"`
	ActionItems   []string `json:"todos"`
}

// Normalize trims blank entries and applies the per-list cap
func (x *ExtractionResult) Normalize() {
	x.NamedEntities = capList(cleanList(x.NamedEntities), MaxExtractionItems)
	x.Numbers = capList(cleanList(x.Numbers), MaxExtractionItems)
	x.ActionItems = capList(cleanList(x.ActionItems), MaxExtractionItems)
}

// IsEmpty reports whether nothing was extracted
func (x *ExtractionResult) IsEmpty() bool {
	return len(x.NamedEntities) == 0 && len(x.Numbers) == 0 && len(x.ActionItems) == 0
}

// Section is a titled paragraph of a mini summary or deep analysis
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MiniSummary is the stage 1 output for one chunk or batch
type MiniSummary struct {
	ChunkIndex int       `json:"-"`
	Sections   []Section `json:"sections"`
}

// Normalize drops sections without content and trims titles
func (m *MiniSummary) Normalize() {
	out := make([]Section, 0, len(m.Sections))
	for _, s := range m.Sections {
		s.Title = strings.TrimSpace(s.Title)
		s.Content = strings.TrimSpace(s.Content)
		if s.Content == "" {
			continue
		}
		if s.Title == "" {
			s.Title = "その他"
		}
		out = append(out, s)
	}
	m.Sections = out
}

// Aggregates are extraction results merged across the whole document
type Aggregates struct {
	NamedEntities []string
	Numbers       []string
	ActionItems   []string
}

// MeetingSummary is the final structured summary of one document
type MeetingSummary struct {
	Overview       string   `json:"summary" yaml:"summary"`
	MainArguments  []string `json:"main_arguments" yaml:"main_arguments"`
	DiscussionFlow string   `json:"discussion_flow" yaml:"discussion_flow"`
	ActionItems    []string `json:"action_items" yaml:"action_items"`
	OpenIssues     []string `json:"open_issues" yaml:"open_issues"`
	NamedEntities  []string `json:"named_entities" yaml:"named_entities"`
	Tags           []string `json:"tags" yaml:"tags"`
	Outline        string   `json:"-" yaml:"-"`
}

// Normalize deduplicates every list with dedupe and then applies its cap
func (s *MeetingSummary) Normalize(dedupe DedupeFunc) {
	s.Overview = strings.TrimSpace(s.Overview)
	s.DiscussionFlow = strings.TrimSpace(s.DiscussionFlow)
	s.MainArguments = capList(dedupe(s.MainArguments), MaxMainArguments)
	s.ActionItems = capList(dedupe(s.ActionItems), MaxActionItems)
	s.OpenIssues = capList(dedupe(s.OpenIssues), MaxOpenIssues)
	s.NamedEntities = capList(dedupe(s.NamedEntities), MaxNamedEntities)
	s.Tags = capList(dedupe(s.Tags), MaxTags)
}

// Validate checks the summary is writable
func (s *MeetingSummary) Validate() error {
	if strings.TrimSpace(s.Overview) == "" {
		return goerr.Wrap(ErrEmptyOverview, "invalid summary")
	}
	caps := []struct {
		name  string
		items []string
		max   int
	}{
		{"main_arguments", s.MainArguments, MaxMainArguments},
		{"action_items", s.ActionItems, MaxActionItems},
		{"open_issues", s.OpenIssues, MaxOpenIssues},
		{"named_entities", s.NamedEntities, MaxNamedEntities},
		{"tags", s.Tags, MaxTags},
	}
	for _, c := range caps {
		if len(c.items) > c.max {
			return goerr.New("summary list exceeds cap",
				goerr.V("field", c.name),
				goerr.V("length", len(c.items)),
				goerr.V("max", c.max))
		}
	}
	return nil
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func capList(items []string, n int) []string {
	if items == nil {
		return []string{}
	}
	if len(items) > n {
		return items[:n]
	}
	return items
}
