package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sourceplane/litejob/internal/loader"
	"github.com/sourceplane/litejob/internal/recorder"
	"github.com/sourceplane/litejob/internal/render"
	"github.com/sourceplane/litejob/internal/workbook"
)

var resultsFormat string

var resultsCmd = &cobra.Command{
	Use:   "results [workbook]",
	Short: "Print the results recorded by the last run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showResults(workbookPath(args))
	},
}

func registerResultsCommand(root *cobra.Command) {
	root.AddCommand(resultsCmd)

	resultsCmd.Flags().StringVarP(&resultsFormat, "format", "f", "table", "Output format (table, json, yaml)")
}

func showResults(path string) error {
	settings, err := loader.LoadSettings(appFs, settingsFile)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	wb, err := workbook.Open(appFs, path)
	if err != nil {
		return err
	}
	defer wb.Close()

	if !wb.HasSheet(settings.Sheets.Result) {
		return fmt.Errorf("workbook %s has no %q sheet, run the job first", path, settings.Sheets.Result)
	}
	records, err := recorder.New(wb, settings.Sheets.Result).Read()
	if err != nil {
		return err
	}

	if resultsFormat == "table" {
		fmt.Println(strings.TrimRight(render.NewResultViewer(records).ViewTable(), "\n"))
		return nil
	}

	cfg, err := loader.ReadJobConfig(wb, settings.Sheets)
	if err != nil {
		return err
	}
	renderer := render.NewRenderer(appFs)
	report := render.NewReport(cfg, records)

	var data []byte
	switch resultsFormat {
	case "json":
		data, err = renderer.RenderJSON(report)
	case "yaml":
		data, err = renderer.RenderYAML(report)
	default:
		return fmt.Errorf("unsupported format %q: must be table, json or yaml", resultsFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to render results: %w", err)
	}
	_, err = os.Stdout.Write(append(data, '\n'))
	return err
}
