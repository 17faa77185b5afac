package main

import (
	"fmt"

	"github.com/sourceplane/litejob/internal/jenkins"
	"github.com/sourceplane/litejob/internal/loader"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/workbook"
)

// session is the configuration a command works on, loaded before any request
// is sent to the server
type session struct {
	settings *model.Settings
	workbook *workbook.Workbook
	config   *model.JobConfig
	sets     []model.ParameterSet
}

// workbookPath prefers a positional workbook argument over --workbook
func workbookPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return workbookFile
}

func loadSession(path string) (*session, error) {
	settings, err := loader.LoadSettings(appFs, settingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	wb, err := workbook.Open(appFs, path)
	if err != nil {
		return nil, err
	}

	cfg, err := loader.ReadJobConfig(wb, settings.Sheets)
	if err != nil {
		wb.Close()
		return nil, err
	}

	var sets []model.ParameterSet
	if cfg.Mode == model.TriggerWithParameters {
		if sets, err = loader.ReadParameterSets(wb, settings.Sheets.BuildParameters); err != nil {
			wb.Close()
			return nil, err
		}
	}

	return &session{settings: settings, workbook: wb, config: cfg, sets: sets}, nil
}

func (s *session) Close() error {
	return s.workbook.Close()
}

// client creates the Jenkins client for the configured job
func (s *session) client() *jenkins.Client {
	opts := []jenkins.Opt{
		jenkins.WithFs(appFs),
		jenkins.WithRetryMax(s.settings.HTTP.RetryMax),
		jenkins.WithTimeout(s.settings.HTTP.Timeout),
	}
	if user, token := loader.Credentials(s.settings.Auth); user != "" {
		opts = append(opts, jenkins.WithBasicAuth(user, token))
	}
	return jenkins.NewClient(s.config.JobURI(), opts...)
}

// previews describes the trigger request of every build invocation
func (s *session) previews(client *jenkins.Client) []string {
	if s.config.Mode == model.TriggerWithParameters {
		previews := make([]string, 0, len(s.sets))
		for _, set := range s.sets {
			previews = append(previews, client.Preview(s.config.Mode, set, s.config.Token))
		}
		return previews
	}
	previews := make([]string, 0, s.config.BuildCount)
	for i := 0; i < s.config.BuildCount; i++ {
		previews = append(previews, client.Preview(s.config.Mode, nil, s.config.Token))
	}
	return previews
}
