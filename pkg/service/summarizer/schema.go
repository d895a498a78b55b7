package summarizer

import "github.com/m-mizutani/gollem"

// Response schema names, registered with the LLM gateway
const (
	SchemaExtraction     = "extraction"
	SchemaMiniSummary    = "mini_summary"
	SchemaDeepAnalysis   = "deep_analysis"
	SchemaMeetingSummary = "meeting_summary"
)

func stringList(description string) *gollem.Parameter {
	return &gollem.Parameter{
		Type:        gollem.TypeArray,
		Description: description,
		Items:       &gollem.Parameter{Type: gollem.TypeString},
		Required:    true,
	}
}

func sectionsSchema(title, description string) *gollem.Parameter {
	return &gollem.Parameter{
		Title:       title,
		Description: description,
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"sections": {
				Type:        gollem.TypeArray,
				Description: "Sections of the analysis in document order",
				Required:    true,
				Items: &gollem.Parameter{
					Type: gollem.TypeObject,
					Properties: map[string]*gollem.Parameter{
						"title": {
							Type:        gollem.TypeString,
							Description: "Section title such as 議題, 決定事項, 課題, 背景",
							Required:    true,
						},
						"content": {
							Type:        gollem.TypeString,
							Description: "Concrete content of the section",
							Required:    true,
						},
					},
				},
			},
		},
	}
}

// Schemas returns every response schema keyed by name
func Schemas() map[string]*gollem.Parameter {
	return map[string]*gollem.Parameter{
		SchemaExtraction: {
			Title:       "ExtractionResult",
			Description: "Facts extracted from a part of a meeting document",
			Type:        gollem.TypeObject,
			Properties: map[string]*gollem.Parameter{
				"named_entities": stringList("Important people, organizations, systems and projects (up to 10)"),
				"numbers":        stringList("Important figures, statistics, budgets and deadlines (up to 10)"),
				"todos":          stringList("Action items and decisions (up to 10)"),
			},
		},
		SchemaMiniSummary:  sectionsSchema("MiniSummary", "Sectioned summary of a part of a meeting document"),
		SchemaDeepAnalysis: sectionsSchema("DeepAnalysis", "Purpose, background, decisions and direction of the meeting"),
		SchemaMeetingSummary: {
			Title:       "MeetingSummary",
			Description: "Comprehensive summary of a meeting",
			Type:        gollem.TypeObject,
			Properties: map[string]*gollem.Parameter{
				"summary": {
					Type:        gollem.TypeString,
					Description: "Concise summary of the whole meeting in 3-4 sentences",
					Required:    true,
				},
				"main_arguments": stringList("Main points discussed (5-8)"),
				"discussion_flow": {
					Type:        gollem.TypeString,
					Description: "Chronological flow of the discussion as a paragraph",
					Required:    true,
				},
				"action_items":   stringList("Concrete action items (up to 5)"),
				"open_issues":    stringList("Unresolved issues and items for further study (up to 5)"),
				"named_entities": stringList("Important people, organizations and systems (up to 10)"),
				"tags":           stringList("Tags characterizing the meeting (3-5)"),
			},
		},
	}
}
