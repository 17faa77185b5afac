package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sourceplane/litejob/internal/metrics"
	"github.com/sourceplane/litejob/internal/poller"
	"github.com/sourceplane/litejob/internal/recorder"
	"github.com/sourceplane/litejob/internal/render"
	"github.com/sourceplane/litejob/internal/runner"
)

var (
	runDryRun       bool
	runReportFile   string
	runFailOnFailed bool
)

var runCmd = &cobra.Command{
	Use:   "run [workbook]",
	Short: "Trigger the configured builds and record their results",
	Long:  "Trigger one build per parameter set (or the configured number of simple builds), wait for each to finish and save the results to the workbook once all builds are done.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobs(cmd, workbookPath(args))
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Print the trigger requests without sending them")
	runCmd.Flags().StringVarP(&runReportFile, "report", "r", "", "Also write the results to this file (json or yaml)")
	runCmd.Flags().BoolVar(&runFailOnFailed, "fail-on-unsuccessful", false, "Exit with an error when any build did not succeed")
}

func runJobs(cmd *cobra.Command, path string) error {
	fmt.Println("□ Loading configuration...")
	s, err := loadSession(path)
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("✓ Job %s (%s)\n", s.config.JobURI(), s.config.Mode)

	client := s.client()
	m := metrics.New()
	p := poller.NewPoller(client, s.settings.PollInterval, poller.NewRetryPolicy(s.settings.StatusRetry), poller.Sleep, m)

	r := runner.NewRunner(client, p, recorder.New(s.workbook, s.settings.Sheets.Result), s.workbook, os.Stdout, runDryRun)
	r.TriggerDelay = s.settings.TriggerDelay
	r.Metrics = m

	if runDryRun {
		fmt.Println("□ Dry-run mode enabled. No request is sent and the workbook is not saved.")
	}

	records, err := r.Run(cmd.Context(), s.config, s.sets)
	if err != nil {
		return err
	}
	if runDryRun {
		fmt.Println("✓ Dry-run complete")
		return nil
	}
	fmt.Printf("✓ Results saved to sheet %q of %s\n\n", s.settings.Sheets.Result, s.workbook.Path())

	viewer := render.NewResultViewer(records)
	fmt.Print(viewer.ViewTable())

	if runReportFile != "" {
		if err := render.NewRenderer(appFs).WriteReport(render.NewReport(s.config, records), runReportFile); err != nil {
			return err
		}
		fmt.Printf("✓ Report written to %s\n", runReportFile)
	}

	if err := m.Push(s.settings.Metrics.Pushgateway, s.settings.Metrics.Job); err != nil {
		logrus.WithError(err).Warn("Failed to push metrics.")
	}

	if runFailOnFailed && !viewer.Succeeded() {
		return fmt.Errorf("not every build succeeded")
	}
	return nil
}
