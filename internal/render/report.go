package render

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/litejob/internal/model"
)

// Report is the exported outcome of a run
type Report struct {
	Job     string                    `json:"job" yaml:"job"`
	Mode    model.TriggerMode         `json:"mode" yaml:"mode"`
	Builds  []model.BuildRecord       `json:"builds" yaml:"builds"`
	Summary map[model.BuildStatus]int `json:"summary" yaml:"summary"`
}

// NewReport summarizes the records of a run of the configured job
func NewReport(cfg *model.JobConfig, records []model.BuildRecord) *Report {
	report := &Report{
		Job:     cfg.JobURI(),
		Mode:    cfg.Mode,
		Builds:  records,
		Summary: Summarize(records),
	}
	if report.Builds == nil {
		report.Builds = []model.BuildRecord{}
	}
	return report
}

// Summarize counts the records per status
func Summarize(records []model.BuildRecord) map[model.BuildStatus]int {
	summary := make(map[model.BuildStatus]int)
	for _, rec := range records {
		summary[rec.Status]++
	}
	return summary
}

// Renderer writes reports to a filesystem
type Renderer struct {
	fs afero.Fs
}

// NewRenderer creates a new renderer
func NewRenderer(fs afero.Fs) *Renderer {
	return &Renderer{fs: fs}
}

// RenderJSON renders the report as JSON
func (r *Renderer) RenderJSON(report *Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// RenderYAML renders the report as YAML
func (r *Renderer) RenderYAML(report *Report) ([]byte, error) {
	return yaml.Marshal(report)
}

// WriteReport writes the report to path (JSON or YAML based on extension)
func (r *Renderer) WriteReport(report *Report, path string) error {
	var data []byte
	var err error

	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := r.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(report)
	default:
		data, err = r.RenderJSON(report)
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if err := afero.WriteFile(r.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// DebugDump describes the resolved job configuration and the request each
// build would send
func DebugDump(cfg *model.JobConfig, sets []model.ParameterSet, requests []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Job: %s\n", cfg.JobName))
	sb.WriteString(fmt.Sprintf("  URI: %s\n", cfg.JobURI()))
	sb.WriteString(fmt.Sprintf("  Mode: %s\n", cfg.Mode))
	if cfg.Mode == model.TriggerSimple {
		sb.WriteString(fmt.Sprintf("  Builds: %d\n", cfg.BuildCount))
		sb.WriteString(fmt.Sprintf("  Token: %t\n", cfg.Token != ""))
	} else {
		sb.WriteString(fmt.Sprintf("  Parameter sets: %d\n", len(sets)))
	}
	sb.WriteString("\n")

	for i, set := range sets {
		sb.WriteString(fmt.Sprintf("Parameter set %d\n", i+1))
		params := append(model.ParameterSet(nil), set...)
		sort.SliceStable(params, func(a, b int) bool {
			return params[a].Name < params[b].Name
		})
		for _, p := range params {
			value := p.Value
			if value == "" {
				value = "(not sent)"
			}
			sb.WriteString(fmt.Sprintf("  %s [%s]: %s\n", p.Name, p.Kind, value))
		}
		sb.WriteString("\n")
	}

	if len(requests) > 0 {
		sb.WriteString("Requests:\n")
		for i, req := range requests {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, req))
		}
	}
	return sb.String()
}
