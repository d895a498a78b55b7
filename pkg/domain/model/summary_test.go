package model_test

import (
	"fmt"
	"testing"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/m-mizutani/gt"
)

func identity(items []string) []string { return items }

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return out
}

func TestMeetingSummaryNormalizeCaps(t *testing.T) {
	s := model.MeetingSummary{
		Overview:      "  概要  ",
		MainArguments: numbered("arg", 12),
		ActionItems:   numbered("todo", 9),
		OpenIssues:    numbered("issue", 6),
		NamedEntities: numbered("entity", 30),
		Tags:          numbered("tag", 7),
	}
	s.Normalize(identity)

	gt.String(t, s.Overview).Equal("概要")
	gt.Array(t, s.MainArguments).Length(model.MaxMainArguments)
	gt.Array(t, s.ActionItems).Length(model.MaxActionItems)
	gt.Array(t, s.OpenIssues).Length(model.MaxOpenIssues)
	gt.Array(t, s.NamedEntities).Length(model.MaxNamedEntities)
	gt.Array(t, s.Tags).Length(model.MaxTags)
	gt.NoError(t, s.Validate())
}

func TestMeetingSummaryValidate(t *testing.T) {
	s := model.MeetingSummary{Overview: ""}
	gt.Error(t, s.Validate()).Is(model.ErrEmptyOverview)

	s = model.MeetingSummary{Overview: "ok", Tags: numbered("tag", 6)}
	gt.Error(t, s.Validate())
}

func TestExtractionResultNormalize(t *testing.T) {
	x := model.ExtractionResult{
		NamedEntities: append([]string{"", "  "}, numbered("e", 12)...),
		Numbers:       []string{" 100億円 "},
	}
	x.Normalize()

	gt.Array(t, x.NamedEntities).Length(model.MaxExtractionItems)
	gt.Value(t, x.NamedEntities[0]).Equal("e-0")
	gt.Value(t, x.Numbers[0]).Equal("100億円")
	gt.Array(t, x.ActionItems).Length(0)
	gt.Bool(t, x.IsEmpty()).False()
}

func TestMiniSummaryNormalize(t *testing.T) {
	m := model.MiniSummary{Sections: []model.Section{
		{Title: " 背景 ", Content: "説明"},
		{Title: "空", Content: "   "},
		{Title: "", Content: "内容"},
	}}
	m.Normalize()

	gt.Array(t, m.Sections).Length(2)
	gt.Value(t, m.Sections[0].Title).Equal("背景")
	gt.Value(t, m.Sections[1].Title).Equal("その他")
}

func TestBatchText(t *testing.T) {
	b := model.Batch{Chunks: []model.Chunk{{Index: 3, Text: "a"}, {Index: 4, Text: "b"}}}
	gt.String(t, b.Text()).Equal("a" + model.BatchSeparator + "b")
	gt.Number(t, b.FirstIndex()).Equal(3)
	gt.Number(t, model.Batch{}.FirstIndex()).Equal(-1)
}

func TestRunResultAdd(t *testing.T) {
	var r model.RunResult
	r.Add(model.DocumentReport{Status: model.DocumentStatusSucceeded})
	r.Add(model.DocumentReport{Status: model.DocumentStatusFailed, DocumentKey: "x"})
	r.Add(model.DocumentReport{Status: model.DocumentStatusSkipped})

	gt.Number(t, r.Succeeded).Equal(1)
	gt.Number(t, r.Failed).Equal(1)
	gt.Number(t, r.Skipped).Equal(1)
	gt.Array(t, r.Failures()).Length(1)
}
