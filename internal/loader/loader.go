package loader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/workbook"
)

// Column headers of the job details sheet
const (
	ColumnServerURL  = "Jenkins_URL"
	ColumnJobName    = "Job_Name"
	ColumnBuildType  = "Build_Type"
	ColumnBuildCount = "Number of builds"
	ColumnToken      = "token"
)

// jobDetailsRow is the row holding the job details values
const jobDetailsRow = 1

// Workbook is the read side of the tabular store the configuration lives in
type Workbook interface {
	RowCount(sheet string) (int, error)
	Row(sheet string, row int) ([]string, error)
	CellByName(sheet, column string, row int) (string, error)
}

// ReadJobConfig loads the job identity from the job details sheet. The server
// URL, job name and build type are required; the token and the number of
// builds are optional.
func ReadJobConfig(wb Workbook, sheets model.SheetNames) (*model.JobConfig, error) {
	sheet := sheets.JobDetails

	required := make(map[string]string, 3)
	for _, column := range []string{ColumnServerURL, ColumnJobName, ColumnBuildType} {
		value, err := wb.CellByName(sheet, column, jobDetailsRow)
		if err != nil {
			return nil, &model.ConfigurationError{Sheet: sheet, Field: column, Err: err}
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return nil, &model.ConfigurationError{
				Sheet:  sheet,
				Field:  column,
				Reason: "the job details Jenkins_URL, Job_Name and Build_Type must not be empty",
			}
		}
		required[column] = value
	}

	mode, err := model.ParseTriggerMode(required[ColumnBuildType])
	if err != nil {
		return nil, &model.ConfigurationError{Sheet: sheet, Field: ColumnBuildType, Err: err}
	}

	config := &model.JobConfig{
		ServerURL:  required[ColumnServerURL],
		JobName:    required[ColumnJobName],
		Mode:       mode,
		BuildCount: 1,
	}

	token, err := optionalCell(wb, sheet, ColumnToken)
	if err != nil {
		return nil, err
	}
	config.Token = token

	if mode == model.TriggerSimple {
		count, err := readBuildCount(wb, sheet)
		if err != nil {
			return nil, err
		}
		config.BuildCount = count
	}

	logrus.WithField("uri", config.JobURI()).Info("Resolved Jenkins job URI.")
	return config, nil
}

func readBuildCount(wb Workbook, sheet string) (int, error) {
	raw, err := optionalCell(wb, sheet, ColumnBuildCount)
	if err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		logrus.Info("Number of builds was not specified for the job without parameters, running a single build.")
		return 1, nil
	}

	count, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &model.ConfigurationError{Sheet: sheet, Field: ColumnBuildCount, Reason: fmt.Sprintf("%q is not an integer", raw)}
	}
	if count < 1 {
		return 0, &model.ConfigurationError{Sheet: sheet, Field: ColumnBuildCount, Reason: fmt.Sprintf("must be a positive integer, got %d", count)}
	}
	return count, nil
}

// optionalCell reads a job details value whose column may be absent
func optionalCell(wb Workbook, sheet, column string) (string, error) {
	value, err := wb.CellByName(sheet, column, jobDetailsRow)
	if errors.Is(err, workbook.ErrColumnNotFound) {
		return "", nil
	}
	if err != nil {
		return "", &model.ConfigurationError{Sheet: sheet, Field: column, Err: err}
	}
	return value, nil
}

// ReadParameterSets loads the build parameters sheet: the header row names
// the parameters and every following row is one build invocation.
func ReadParameterSets(wb Workbook, sheet string) ([]model.ParameterSet, error) {
	header, err := wb.Row(sheet, 0)
	if err != nil {
		return nil, &model.ConfigurationError{Sheet: sheet, Reason: "no build parameters are defined", Err: err}
	}

	type column struct {
		index int
		name  string
		kind  model.ParameterKind
	}
	columns := make([]column, 0, len(header))
	for i, raw := range header {
		name, kind := model.ParseParameterName(raw)
		if name == "" {
			continue
		}
		columns = append(columns, column{index: i, name: name, kind: kind})
	}
	if len(columns) == 0 {
		return nil, &model.ConfigurationError{Sheet: sheet, Reason: "no build parameters are defined"}
	}

	rowCount, err := wb.RowCount(sheet)
	if err != nil {
		return nil, &model.ConfigurationError{Sheet: sheet, Err: err}
	}
	logrus.WithField("rows", rowCount-1).Info("Loaded build parameter rows.")

	sets := make([]model.ParameterSet, 0, rowCount-1)
	for r := 1; r < rowCount; r++ {
		cells, err := wb.Row(sheet, r)
		if err != nil {
			return nil, &model.ConfigurationError{Sheet: sheet, Err: err}
		}
		set := make(model.ParameterSet, 0, len(columns))
		for _, c := range columns {
			value := ""
			if c.index < len(cells) {
				value = cells[c.index]
			}
			set = append(set, model.Parameter{Name: c.name, Kind: c.kind, Value: value})
		}
		sets = append(sets, set)
	}
	return sets, nil
}
