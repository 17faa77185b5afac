package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourceplane/litejob/internal/model"
)

// ResultViewer provides a human-readable view of recorded builds
type ResultViewer struct {
	records []model.BuildRecord
}

// NewResultViewer creates a new result viewer
func NewResultViewer(records []model.BuildRecord) *ResultViewer {
	return &ResultViewer{records: records}
}

// ViewTable lists the builds in run order followed by a per-status summary
func (rv *ResultViewer) ViewTable() string {
	if len(rv.records) == 0 {
		return "No builds recorded"
	}

	width := len("Build")
	for _, rec := range rv.records {
		if w := len(fmt.Sprintf("#%d", rec.Number)); w > width {
			width = w
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("   %-*s  %s\n", width, "Build", "Status"))
	for i, rec := range rv.records {
		prefix := "├─ "
		if i == len(rv.records)-1 {
			prefix = "└─ "
		}
		sb.WriteString(fmt.Sprintf("%s%-*s  %s\n", prefix, width, fmt.Sprintf("#%d", rec.Number), rec.Status))
	}

	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	sb.WriteString(fmt.Sprintf("Summary: %d builds", len(rv.records)))
	for _, line := range rv.summaryLines() {
		sb.WriteString(", " + line)
	}
	sb.WriteString("\n")
	return sb.String()
}

// Succeeded reports whether every recorded build succeeded
func (rv *ResultViewer) Succeeded() bool {
	for _, rec := range rv.records {
		if rec.Status != model.StatusSuccess {
			return false
		}
	}
	return true
}

func (rv *ResultViewer) summaryLines() []string {
	summary := Summarize(rv.records)
	statuses := make([]string, 0, len(summary))
	for status := range summary {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		lines = append(lines, fmt.Sprintf("%d %s", summary[model.BuildStatus(status)], status))
	}
	return lines
}
