package runner

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sourceplane/litejob/internal/metrics"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/poller"
)

// Jenkins is the part of the job client the runner drives
type Jenkins interface {
	LastBuildNumber(ctx context.Context) (int, error)
	Trigger(ctx context.Context, token string) error
	TriggerWithParameters(ctx context.Context, params model.ParameterSet) error
	Preview(mode model.TriggerMode, params model.ParameterSet, token string) string
}

// Poller checks build status and waits for builds to finish
type Poller interface {
	Status(ctx context.Context, number int) (model.BuildStatus, error)
	AwaitCompletion(ctx context.Context, number int) (model.BuildRecord, error)
}

// Recorder writes build outcomes to the result sheet
type Recorder interface {
	Reset() error
	Record(row int, rec model.BuildRecord) error
}

// Saver persists the workbook
type Saver interface {
	Save() error
}

// Runner triggers the configured builds one after another, waits for each to
// finish and records the outcome. The workbook is saved once, after the last
// build; an error at any point leaves it untouched.
type Runner struct {
	Jenkins  Jenkins
	Poller   Poller
	Recorder Recorder
	Store    Saver
	Stdout   io.Writer
	DryRun   bool

	// TriggerDelay is waited after a trigger so the server can register the
	// new build before it is polled
	TriggerDelay time.Duration
	Sleep        poller.Sleeper
	Metrics      *metrics.Metrics
}

func NewRunner(client Jenkins, p Poller, recorder Recorder, store Saver, stdout io.Writer, dryRun bool) *Runner {
	return &Runner{
		Jenkins:      client,
		Poller:       p,
		Recorder:     recorder,
		Store:        store,
		Stdout:       stdout,
		DryRun:       dryRun,
		TriggerDelay: 30 * time.Second,
		Sleep:        poller.Sleep,
	}
}

// invocations returns one parameter set per build to trigger
func invocations(cfg *model.JobConfig, sets []model.ParameterSet) []model.ParameterSet {
	if cfg.Mode == model.TriggerWithParameters {
		return sets
	}
	count := cfg.BuildCount
	if count < 1 {
		count = 1
	}
	return make([]model.ParameterSet, count)
}

// Run executes every configured build invocation and returns the recorded
// outcomes in trigger order
func (r *Runner) Run(ctx context.Context, cfg *model.JobConfig, sets []model.ParameterSet) ([]model.BuildRecord, error) {
	if cfg == nil {
		return nil, fmt.Errorf("job configuration cannot be nil")
	}
	builds := invocations(cfg, sets)

	if r.DryRun {
		for i, params := range builds {
			fmt.Fprintf(r.Stdout, "→ Build %d/%d\n", i+1, len(builds))
			fmt.Fprintf(r.Stdout, "    %s\n", r.Jenkins.Preview(cfg.Mode, params, cfg.Token))
		}
		return nil, nil
	}

	if err := r.Recorder.Reset(); err != nil {
		return nil, fmt.Errorf("failed to reset result sheet: %w", err)
	}

	last, err := r.Jenkins.LastBuildNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get last build number: %w", err)
	}
	logrus.WithField("build", last).Info("Found the last build of the job.")

	records := make([]model.BuildRecord, 0, len(builds))
	for i, params := range builds {
		fmt.Fprintf(r.Stdout, "→ Build %d/%d\n", i+1, len(builds))

		triggered, err := r.trigger(ctx, cfg, params, last)
		if err != nil {
			return nil, err
		}
		if triggered {
			last++
			if err := r.Sleep(ctx, r.TriggerDelay); err != nil {
				return nil, err
			}
		}

		rec, err := r.Poller.AwaitCompletion(ctx, last)
		if err != nil {
			return nil, err
		}
		if err := r.Recorder.Record(i+1, rec); err != nil {
			return nil, err
		}
		fmt.Fprintf(r.Stdout, "  ✓ #%d %s\n", rec.Number, rec.Status)
		records = append(records, rec)
	}

	if err := r.Store.Save(); err != nil {
		return nil, err
	}
	return records, nil
}

// trigger starts a build unless the last known build is still running
func (r *Runner) trigger(ctx context.Context, cfg *model.JobConfig, params model.ParameterSet, last int) (bool, error) {
	status, err := r.Poller.Status(ctx, last)
	if err != nil {
		return false, err
	}
	if status == model.StatusRunning {
		logrus.WithField("build", last).Info("Previous build is still running, not triggering a new one.")
		fmt.Fprintf(r.Stdout, "  - Skipped trigger: #%d is still running\n", last)
		r.Metrics.TriggerSkipped()
		return false, nil
	}

	switch cfg.Mode {
	case model.TriggerWithParameters:
		err = r.Jenkins.TriggerWithParameters(ctx, params)
	default:
		err = r.Jenkins.Trigger(ctx, cfg.Token)
	}
	if err != nil {
		return false, err
	}
	r.Metrics.BuildTriggered()
	fmt.Fprintf(r.Stdout, "  - Triggered #%d\n", last+1)
	return true, nil
}
