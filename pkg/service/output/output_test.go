package output_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/db4dd/db4dd/pkg/service/output"
	"github.com/m-mizutani/gt"
)

func newDoc(t *testing.T) *model.Document {
	t.Helper()
	id := model.DocumentID{MeetingName: "デジタル会議", Round: 5, Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)}
	doc, err := model.NewDocument(id, "本文", "デジタル会議_第5回_20240308.txt")
	gt.NoError(t, err).Required()
	return doc
}

func newSummary() *model.MeetingSummary {
	return &model.MeetingSummary{
		Overview:       "デジタル会議 第5回\n予算配分について議論した。",
		MainArguments:  []string{"予算配分の見直し", "次年度計画を承認"},
		DiscussionFlow: "まず予算について議論され、最終的に計画が承認された。",
		ActionItems:    []string{"資料を更新する"},
		OpenIssues:     []string{"人員配置"},
		NamedEntities:  []string{"デジタル庁"},
		Tags:           []string{"予算", "DX"},
		Outline:        "主要セクション:\n### 開催目的\n予算の確認\n### 議題\n配分\n\n抽出された情報:\n",
	}
}

func TestRender(t *testing.T) {
	data, err := output.Render(newDoc(t), newSummary())
	gt.NoError(t, err).Required()
	text := string(data)

	fm, err := output.ParseFrontMatter(data)
	gt.NoError(t, err).Required()
	gt.Value(t, fm.Date).Equal("2024-03-08")
	gt.Value(t, fm.Meeting).Equal("デジタル会議")
	gt.Value(t, fm.Round).Equal(5)
	gt.Value(t, fm.Source).Equal("デジタル会議_第5回_20240308.txt")
	gt.Value(t, fm.Status).Equal(types.LedgerStatusCompleted)
	gt.Value(t, fm.Tags).Equal([]string{"予算", "DX"})

	gt.String(t, text).Contains("# デジタル会議 第5回\n")
	gt.String(t, text).Contains("## 会議概要\n\n予算配分について議論した。")
	gt.String(t, text).Contains("## 開催目的\n\n予算の確認")
	gt.String(t, text).Contains("## 主要な論点\n\n- 予算配分の見直し\n- 次年度計画を承認")
	gt.String(t, text).Contains("## 決定事項\n\n- 次年度計画を承認")
	gt.String(t, text).Contains("## アクションアイテム\n\n- 資料を更新する")
	gt.String(t, text).Contains("## 今後の課題\n\n- 人員配置")
	gt.String(t, text).Contains("#### 関連組織・人物\nデジタル庁")
	gt.String(t, text).Contains("#### 出典\nデジタル会議_第5回_20240308.txt")

	// the heading line is not repeated in the overview
	gt.Number(t, strings.Count(text, "デジタル会議 第5回")).Equal(1)
}

func TestRenderUsesOverviewAsPurposeFallback(t *testing.T) {
	s := newSummary()
	s.Outline = ""
	s.MainArguments = []string{"予算配分の見直し"}

	data, err := output.Render(newDoc(t), s)
	gt.NoError(t, err).Required()
	text := string(data)

	gt.String(t, text).Contains("## 開催目的\n\n予算配分について議論した。")
	gt.Bool(t, strings.Contains(text, "## 会議概要")).False()
	gt.Bool(t, strings.Contains(text, "## 決定事項")).False()
}

func TestDirWriter(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	w, err := output.NewWriter(ctx, dir)
	gt.NoError(t, err).Required()
	svc := output.New(w)
	defer func() { gt.NoError(t, svc.Close()) }()

	doc := newDoc(t)
	dst, err := svc.WriteSummary(ctx, doc, newSummary())
	gt.NoError(t, err).Required()
	gt.Value(t, dst).Equal(filepath.Join(dir, "デジタル会議_第05回_2024-03-08.md"))

	entries, err := os.ReadDir(dir)
	gt.NoError(t, err).Required()
	gt.A(t, entries).Length(1)

	result := &model.RunResult{RunID: "run-1", Succeeded: 1}
	statsPath, err := svc.WriteStats(ctx, result)
	gt.NoError(t, err).Required()

	raw, err := os.ReadFile(statsPath)
	gt.NoError(t, err).Required()
	var got model.RunResult
	gt.NoError(t, json.Unmarshal(raw, &got)).Required()
	gt.Value(t, got.RunID).Equal(model.RunID("run-1"))
	gt.Value(t, got.Succeeded).Equal(1)
}

func TestParseGCSURL(t *testing.T) {
	tests := []struct {
		dest   string
		bucket string
		prefix string
		fail   bool
	}{
		{"gs://bucket/summaries/2024/", "bucket", "summaries/2024", false},
		{"gs://bucket", "bucket", "", false},
		{"gs:///prefix", "", "", true},
		{"/local/dir", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			bucket, prefix, err := output.ParseGCSURL(tt.dest)
			if tt.fail {
				gt.Error(t, err)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, bucket).Equal(tt.bucket)
			gt.Value(t, prefix).Equal(tt.prefix)
		})
	}
}
