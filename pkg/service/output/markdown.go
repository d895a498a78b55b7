package output

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/db4dd/db4dd/pkg/domain/model"
	"github.com/db4dd/db4dd/pkg/domain/types"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

const noRecord = "（記録なし）"

var (
	purposePattern  = regexp.MustCompile(`(?s)###\s*(?:開催目的|目的|趣旨)\s*\n(.+?)(?:\n###|\n\n|$)`)
	decisionPattern = regexp.MustCompile(`(?s)###\s*(?:主要決定事項|決定事項|合意事項|承認事項)\s*\n(.+?)(?:\n###|\n\n|$)`)
	decisionWords   = []string{"決定", "承認", "合意", "採択", "確認"}
)

// FrontMatter is the YAML header of a summary file
type FrontMatter struct {
	Date    string             `yaml:"date"`
	Meeting string             `yaml:"meeting"`
	Round   int                `yaml:"round"`
	Source  string             `yaml:"source"`
	Status  types.LedgerStatus `yaml:"status"`
	Tags    []string           `yaml:"tags"`
}

// Render builds the Markdown summary of doc with YAML front matter
func Render(doc *model.Document, summary *model.MeetingSummary) ([]byte, error) {
	fm := FrontMatter{
		Date:    doc.ID.Date.Format("2006-01-02"),
		Meeting: doc.ID.MeetingName,
		Round:   doc.ID.Round,
		Source:  doc.Source,
		Status:  types.LedgerStatusCompleted,
		Tags:    summary.Tags,
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal front matter", goerr.V(model.DocumentKeyKey, doc.ID.Key()))
	}

	overview := stripTitleLines(summary.Overview, doc.ID.MeetingName)
	purpose := sectionBody(purposePattern, summary.Outline)
	if purpose == "" && overview != "" {
		purpose = overview
		overview = ""
	}

	var sections []string
	if overview != "" {
		sections = append(sections, "## 会議概要\n\n"+overview)
	}
	if purpose != "" {
		sections = append(sections, "## 開催目的\n\n"+purpose)
	}
	if len(summary.MainArguments) > 0 {
		sections = append(sections, "## 主要な論点\n\n"+bullets(summary.MainArguments))
	}
	if summary.DiscussionFlow != "" {
		sections = append(sections, "## 議論の流れ\n\n"+summary.DiscussionFlow)
	}
	if decisions := decisionsOf(summary); decisions != noRecord {
		sections = append(sections, "## 決定事項\n\n"+decisions)
	}
	if len(summary.ActionItems) > 0 {
		sections = append(sections, "## アクションアイテム\n\n"+bullets(summary.ActionItems))
	}
	if len(summary.OpenIssues) > 0 {
		sections = append(sections, "## 今後の課題\n\n"+bullets(summary.OpenIssues))
	}

	ref := []string{"## 参考情報"}
	if len(summary.NamedEntities) > 0 {
		ref = append(ref, "#### 関連組織・人物", strings.Join(summary.NamedEntities, ", "))
	}
	ref = append(ref, "#### 出典", doc.Source)
	sections = append(sections, strings.Join(ref, "\n"))

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(header)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s 第%d回\n\n", doc.ID.MeetingName, doc.ID.Round)
	buf.WriteString(strings.Join(sections, "\n\n"))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ParseFrontMatter reads the YAML header back from a rendered summary
func ParseFrontMatter(data []byte) (*FrontMatter, error) {
	text := string(data)
	if !strings.HasPrefix(text, "---\n") {
		return nil, goerr.New("front matter not found")
	}
	end := strings.Index(text[4:], "\n---\n")
	if end < 0 {
		return nil, goerr.New("front matter is not terminated")
	}

	var fm FrontMatter
	if err := yaml.Unmarshal([]byte(text[4:4+end+1]), &fm); err != nil {
		return nil, goerr.Wrap(err, "failed to parse front matter")
	}
	return &fm, nil
}

func decisionsOf(summary *model.MeetingSummary) string {
	if body := sectionBody(decisionPattern, summary.Outline); body != "" {
		var lines []string
		for _, line := range strings.Split(body, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "*") {
				line = "- " + line
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}

	var picked []string
	for _, arg := range summary.MainArguments {
		for _, w := range decisionWords {
			if strings.Contains(arg, w) {
				picked = append(picked, arg)
				break
			}
		}
	}
	if len(picked) == 0 {
		return noRecord
	}
	return bullets(picked)
}

func sectionBody(re *regexp.Regexp, outline string) string {
	m := re.FindStringSubmatch(outline)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// stripTitleLines drops overview lines that only repeat the meeting heading
func stripTitleLines(overview, meeting string) string {
	var kept []string
	for _, line := range strings.Split(overview, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, meeting) && (strings.Contains(line, "第") || strings.Contains(line, "回")) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func bullets(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}
