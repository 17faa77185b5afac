package runner

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/sourceplane/litejob/internal/metrics"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/poller"
	"github.com/sourceplane/litejob/internal/recorder"
	"github.com/sourceplane/litejob/internal/workbook"
)

// fakeJenkins serves scripted build statuses and records trigger calls
type fakeJenkins struct {
	last       int
	statuses   map[int][]model.BuildStatus
	triggerErr error

	triggers []model.ParameterSet
	tokens   []string
	polled   []int
}

func (f *fakeJenkins) LastBuildNumber(context.Context) (int, error) {
	return f.last, nil
}

func (f *fakeJenkins) Trigger(_ context.Context, token string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.tokens = append(f.tokens, token)
	f.triggers = append(f.triggers, nil)
	return nil
}

func (f *fakeJenkins) TriggerWithParameters(_ context.Context, params model.ParameterSet) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	f.triggers = append(f.triggers, params)
	return nil
}

func (f *fakeJenkins) Preview(mode model.TriggerMode, params model.ParameterSet, _ string) string {
	return "GET " + string(mode) + " " + strings.Join(paramNames(params), ",")
}

// BuildStatus pops the next scripted status of a build; builds without a
// script have succeeded
func (f *fakeJenkins) BuildStatus(_ context.Context, number int) (model.BuildStatus, error) {
	f.polled = append(f.polled, number)
	queue := f.statuses[number]
	if len(queue) == 0 {
		return model.StatusSuccess, nil
	}
	f.statuses[number] = queue[1:]
	return queue[0], nil
}

func paramNames(params model.ParameterSet) []string {
	var names []string
	for _, p := range params {
		names = append(names, p.Name+"="+p.Value)
	}
	return names
}

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

const jobsYAML = `sheets:
  - name: Job Details
    rows:
      - [Jenkins_URL, Job_Name, Build_Type]
      - ["http://ci.example.com", nightly, build]
`

type fixture struct {
	fs      afero.Fs
	wb      *workbook.Workbook
	jenkins *fakeJenkins
	sleeper *recordingSleeper
	stdout  *bytes.Buffer
	metrics *metrics.Metrics
	runner  *Runner
}

func newFixture(t *testing.T, jenkins *fakeJenkins, dryRun bool) *fixture {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "jobs.yaml", []byte(jobsYAML), 0644); err != nil {
		t.Fatal(err)
	}
	wb, err := workbook.Open(fs, "jobs.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if jenkins.statuses == nil {
		jenkins.statuses = map[int][]model.BuildStatus{}
	}

	f := &fixture{
		fs:      fs,
		wb:      wb,
		jenkins: jenkins,
		sleeper: &recordingSleeper{},
		stdout:  &bytes.Buffer{},
		metrics: metrics.New(),
	}
	p := poller.NewPoller(jenkins, 30*time.Second, poller.NewRetryPolicy(model.DefaultSettings().StatusRetry), f.sleeper.sleep, f.metrics)
	f.runner = NewRunner(jenkins, p, recorder.New(wb, "Result"), wb, f.stdout, dryRun)
	f.runner.Sleep = f.sleeper.sleep
	f.runner.Metrics = f.metrics
	return f
}

// saved reads back the result sheet from the persisted workbook
func (f *fixture) saved(t *testing.T) [][]string {
	t.Helper()
	wb, err := workbook.Open(f.fs, "jobs.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !wb.HasSheet("Result") {
		return nil
	}
	count, err := wb.RowCount("Result")
	if err != nil {
		t.Fatal(err)
	}
	var rows [][]string
	for i := 0; i < count; i++ {
		row, err := wb.Row("Result", i)
		if err != nil {
			t.Fatal(err)
		}
		rows = append(rows, row)
	}
	return rows
}

func TestRunParameterized(t *testing.T) {
	jenkins := &fakeJenkins{last: 10}
	f := newFixture(t, jenkins, false)

	sets := []model.ParameterSet{
		{{Name: "BRANCH", Value: "a"}},
		{{Name: "BRANCH", Value: "b"}},
		{{Name: "BRANCH", Value: "c"}},
	}
	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerWithParameters}

	records, err := f.runner.Run(context.Background(), cfg, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff(sets, jenkins.triggers); diff != "" {
		t.Errorf("builds were not triggered in row order: %s", diff)
	}
	expected := []model.BuildRecord{
		{Number: 11, Status: model.StatusSuccess},
		{Number: 12, Status: model.StatusSuccess},
		{Number: 13, Status: model.StatusSuccess},
	}
	if diff := cmp.Diff(expected, records); diff != "" {
		t.Errorf("unexpected records: %s", diff)
	}
	expectedRows := [][]string{
		{"Build Number", "Status"},
		{"11", "SUCCESS"},
		{"12", "SUCCESS"},
		{"13", "SUCCESS"},
	}
	if diff := cmp.Diff(expectedRows, f.saved(t)); diff != "" {
		t.Errorf("unexpected result sheet: %s", diff)
	}
	// guard of the previous build, then the first check of the new one
	if diff := cmp.Diff([]int{10, 11, 11, 12, 12, 13}, jenkins.polled); diff != "" {
		t.Errorf("unexpected status checks: %s", diff)
	}
}

func TestRunSimpleDefaultsToOneBuild(t *testing.T) {
	jenkins := &fakeJenkins{last: 3, statuses: map[int][]model.BuildStatus{
		4: {model.StatusRunning, model.StatusRunning, model.StatusFailure},
	}}
	f := newFixture(t, jenkins, false)
	f.runner.TriggerDelay = 45 * time.Second

	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerSimple, Token: "s3cret"}
	records, err := f.runner.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if diff := cmp.Diff([]string{"s3cret"}, jenkins.tokens); diff != "" {
		t.Errorf("unexpected trigger tokens: %s", diff)
	}
	if diff := cmp.Diff([]model.BuildRecord{{Number: 4, Status: model.StatusFailure}}, records); diff != "" {
		t.Errorf("unexpected records: %s", diff)
	}
	if diff := cmp.Diff([][]string{{"Build Number", "Status"}, {"4", "FAILURE"}}, f.saved(t)); diff != "" {
		t.Errorf("unexpected result sheet: %s", diff)
	}
	if diff := cmp.Diff([]time.Duration{45 * time.Second, 30 * time.Second, 30 * time.Second}, f.sleeper.slept); diff != "" {
		t.Errorf("unexpected sleeps: %s", diff)
	}
}

func TestRunSimpleBuildCount(t *testing.T) {
	jenkins := &fakeJenkins{last: 1}
	f := newFixture(t, jenkins, false)

	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerSimple, BuildCount: 2}
	records, err := f.runner.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jenkins.tokens) != 2 {
		t.Errorf("expected 2 triggers, got %d", len(jenkins.tokens))
	}
	if diff := cmp.Diff([]model.BuildRecord{{Number: 2, Status: model.StatusSuccess}, {Number: 3, Status: model.StatusSuccess}}, records); diff != "" {
		t.Errorf("unexpected records: %s", diff)
	}
}

func TestRunSkipsTriggerWhileRunning(t *testing.T) {
	jenkins := &fakeJenkins{last: 8, statuses: map[int][]model.BuildStatus{
		8: {model.StatusRunning, model.StatusRunning, model.StatusSuccess},
	}}
	f := newFixture(t, jenkins, false)

	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerSimple}
	records, err := f.runner.Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(jenkins.triggers) != 0 {
		t.Errorf("expected no trigger while the previous build runs, got %d", len(jenkins.triggers))
	}
	// the counter stays on the running build, which is awaited instead
	if diff := cmp.Diff([]model.BuildRecord{{Number: 8, Status: model.StatusSuccess}}, records); diff != "" {
		t.Errorf("unexpected records: %s", diff)
	}
	if !strings.Contains(f.stdout.String(), "Skipped trigger: #8 is still running") {
		t.Errorf("expected the skip to be reported, got:\n%s", f.stdout.String())
	}
}

func TestRunErrorDoesNotSave(t *testing.T) {
	triggerErr := errors.New("expected response code 201, got 500")
	jenkins := &fakeJenkins{last: 1, triggerErr: triggerErr}
	f := newFixture(t, jenkins, false)

	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerSimple}
	_, err := f.runner.Run(context.Background(), cfg, nil)
	if !errors.Is(err, triggerErr) {
		t.Fatalf("expected the trigger error, got %v", err)
	}
	if rows := f.saved(t); rows != nil {
		t.Errorf("expected the workbook to be left untouched, got result rows %v", rows)
	}
}

func TestRunCancelledDoesNotSave(t *testing.T) {
	jenkins := &fakeJenkins{last: 1}
	f := newFixture(t, jenkins, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerSimple}
	if _, err := f.runner.Run(ctx, cfg, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if rows := f.saved(t); rows != nil {
		t.Errorf("expected the workbook to be left untouched, got result rows %v", rows)
	}
}

func TestRunDryRun(t *testing.T) {
	jenkins := &fakeJenkins{last: 1}
	f := newFixture(t, jenkins, true)

	sets := []model.ParameterSet{
		{{Name: "BRANCH", Value: "a"}},
		{{Name: "BRANCH", Value: "b"}},
	}
	cfg := &model.JobConfig{ServerURL: "http://ci.example.com", JobName: "nightly", Mode: model.TriggerWithParameters}
	records, err := f.runner.Run(context.Background(), cfg, sets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records != nil {
		t.Errorf("expected no records in dry-run, got %v", records)
	}
	if len(jenkins.triggers) != 0 || len(jenkins.polled) != 0 {
		t.Errorf("expected no requests in dry-run, got %d triggers and %d polls", len(jenkins.triggers), len(jenkins.polled))
	}
	for _, expected := range []string{"→ Build 1/2", "GET buildWithParameters BRANCH=a", "GET buildWithParameters BRANCH=b"} {
		if !strings.Contains(f.stdout.String(), expected) {
			t.Errorf("expected %q in output:\n%s", expected, f.stdout.String())
		}
	}
	if rows := f.saved(t); rows != nil {
		t.Errorf("expected nothing to be saved, got %v", rows)
	}
}
