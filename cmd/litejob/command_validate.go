package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/sourceplane/litejob/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workbook]",
	Short: "Validate the workbook and settings without contacting the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateFiles(workbookPath(args))
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validateFiles(path string) error {
	fmt.Println("□ Validating configuration...")
	s, err := loadSession(path)
	if err != nil {
		return err
	}
	defer s.Close()
	fmt.Printf("✓ Job details are valid: %s (%s)\n", s.config.JobURI(), s.config.Mode)

	if s.config.Mode == model.TriggerWithParameters {
		fmt.Printf("□ Checking %d parameter set(s)...\n", len(s.sets))
		if err := checkUploads(s.sets); err != nil {
			return err
		}
		fmt.Println("✓ Build parameters are valid")
	}

	fmt.Println("✓ All validation passed")
	return nil
}

// checkUploads requires every non-empty file parameter to point at an
// existing file
func checkUploads(sets []model.ParameterSet) error {
	for i, set := range sets {
		for _, p := range set.NonEmpty() {
			if p.Kind != model.ParameterFileUpload {
				continue
			}
			exists, err := afero.Exists(appFs, p.Value)
			if err != nil {
				return fmt.Errorf("failed to check file for parameter %s: %w", p.Name, err)
			}
			if !exists {
				return &model.ConfigurationError{
					Field:  p.Name,
					Reason: fmt.Sprintf("file %s of parameter set %d does not exist", p.Value, i+1),
				}
			}
		}
	}
	return nil
}
