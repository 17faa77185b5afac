package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/litejob/internal/render"
)

var debugShowSettings bool

var debugCmd = &cobra.Command{
	Use:   "debug [workbook]",
	Short: "Show the resolved configuration and the requests a run would send",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return debugConfig(workbookPath(args))
	},
}

func registerDebugCommand(root *cobra.Command) {
	root.AddCommand(debugCmd)

	debugCmd.Flags().BoolVar(&debugShowSettings, "show-settings", false, "Also print the effective settings")
}

func debugConfig(path string) error {
	fmt.Println("□ Loading configuration...")
	s, err := loadSession(path)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("\nWorkbook: %s\n", s.workbook.Path())
	fmt.Printf("Sheets: %v\n\n", s.workbook.Sheets())
	fmt.Print(render.DebugDump(s.config, s.sets, s.previews(s.client())))

	if debugShowSettings {
		data, err := yaml.Marshal(s.settings)
		if err != nil {
			return fmt.Errorf("failed to render settings: %w", err)
		}
		fmt.Printf("\nSettings:\n%s", data)
	}
	return nil
}
