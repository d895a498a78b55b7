package summarizer

import (
	"strings"

	"github.com/db4dd/db4dd/pkg/domain/model"
)

// synthesize combines mini summary sections by title in first-seen order, appends the deep
// analysis, and aggregates the extraction results. Every list is deduplicated.
func (s *Summarizer) synthesize(minis []model.MiniSummary, deep []model.Section, extractions []model.ExtractionResult) ([]model.Section, model.Aggregates) {
	var titles []string
	contents := make(map[string][]string)

	add := func(sec model.Section) {
		if _, ok := contents[sec.Title]; !ok {
			titles = append(titles, sec.Title)
		}
		contents[sec.Title] = append(contents[sec.Title], sec.Content)
	}

	for _, m := range minis {
		for _, sec := range m.Sections {
			add(sec)
		}
	}

	sections := make([]model.Section, 0, len(titles)+len(deep))
	for _, title := range titles {
		items := s.dedupe.Dedupe(contents[title])
		if len(items) == 0 {
			continue
		}
		sections = append(sections, model.Section{
			Title:   title,
			Content: strings.Join(items, "\n"),
		})
	}
	sections = append(sections, deep...)

	var entities, numbers, actions []string
	for _, x := range extractions {
		entities = append(entities, x.NamedEntities...)
		numbers = append(numbers, x.Numbers...)
		actions = append(actions, x.ActionItems...)
	}

	agg := model.Aggregates{
		NamedEntities: capList(s.dedupe.Dedupe(entities), model.MaxAggregatedEntities),
		Numbers:       capList(s.dedupe.Dedupe(numbers), model.MaxAggregatedNumbers),
		ActionItems:   capList(s.dedupe.Dedupe(actions), model.MaxAggregatedActions),
	}
	return sections, agg
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
