package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sourceplane/litejob/internal/loader"
)

var (
	workbookFile string
	settingsFile string
	envFile      string
	logLevel     string
	logFormat    string
)

// appFs is the filesystem workbooks, settings and reports are read from and
// written to
var appFs = afero.NewOsFs()

var rootCmd = &cobra.Command{
	Use:          "litejob",
	Short:        "Workbook driven Jenkins job runner",
	Long:         "litejob triggers a Jenkins job once per configured invocation, waits for every build to finish and records the results back into the workbook",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		return loader.LoadEnvFile(appFs, envFile, cmd.Flags().Changed("env-file"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workbookFile, "workbook", "w", "jobs.xlsx", "Workbook holding the job details, build parameters and results (.xlsx or .yaml)")
	rootCmd.PersistentFlags().StringVarP(&settingsFile, "settings", "s", "", "Optional YAML settings file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file with credentials, ignored when absent unless set explicitly")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Level at which to log output (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	registerRunCommand(rootCmd)
	registerValidateCommand(rootCmd)
	registerDebugCommand(rootCmd)
	registerResultsCommand(rootCmd)
}

func setupLogging() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logrus.SetLevel(level)

	switch logFormat {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("invalid --log-format %q: must be text or json", logFormat)
	}
	return nil
}
