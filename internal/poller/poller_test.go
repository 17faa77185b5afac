package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sourceplane/litejob/internal/metrics"
	"github.com/sourceplane/litejob/internal/model"
)

type response struct {
	status model.BuildStatus
	err    error
}

// fakeStatusGetter answers with the scripted responses in order and repeats
// the last one once they run out
type fakeStatusGetter struct {
	responses []response
	calls     []int
}

func (f *fakeStatusGetter) BuildStatus(_ context.Context, number int) (model.BuildStatus, error) {
	f.calls = append(f.calls, number)
	idx := len(f.calls) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx].status, f.responses[idx].err
}

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return ctx.Err()
}

var (
	errUnavailable     = errors.New("connection refused")
	defaultRetryPolicy = NewRetryPolicy(model.DefaultSettings().StatusRetry)
)

func TestStatus(t *testing.T) {
	var testCases = []struct {
		name          string
		responses     []response
		expected      model.BuildStatus
		expectedErr   bool
		expectedCalls int
		expectedSleep []time.Duration
	}{
		{
			name:          "first attempt succeeds",
			responses:     []response{{status: model.StatusSuccess}},
			expected:      model.StatusSuccess,
			expectedCalls: 1,
		},
		{
			name:          "one failure is retried after the delay",
			responses:     []response{{err: errUnavailable}, {status: model.StatusRunning}},
			expected:      model.StatusRunning,
			expectedCalls: 2,
			expectedSleep: []time.Duration{30 * time.Second},
		},
		{
			name:          "second failure is fatal",
			responses:     []response{{err: errUnavailable}, {err: errUnavailable}},
			expectedErr:   true,
			expectedCalls: 2,
			expectedSleep: []time.Duration{30 * time.Second},
		},
		{
			name:          "cancellation is not retried",
			responses:     []response{{err: context.Canceled}},
			expectedErr:   true,
			expectedCalls: 1,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client := &fakeStatusGetter{responses: testCase.responses}
			sleeper := &recordingSleeper{}
			p := NewPoller(client, 30*time.Second, defaultRetryPolicy, sleeper.sleep, nil)

			actual, err := p.Status(context.Background(), 12)
			if (err != nil) != testCase.expectedErr {
				t.Fatalf("expected error %t, got %v", testCase.expectedErr, err)
			}
			if actual != testCase.expected {
				t.Errorf("expected status %q, got %q", testCase.expected, actual)
			}
			if len(client.calls) != testCase.expectedCalls {
				t.Errorf("expected %d calls, got %d", testCase.expectedCalls, len(client.calls))
			}
			if diff := cmp.Diff(testCase.expectedSleep, sleeper.slept); diff != "" {
				t.Errorf("unexpected sleeps: %s", diff)
			}
		})
	}
}

func TestStatusWrapsLastError(t *testing.T) {
	client := &fakeStatusGetter{responses: []response{{err: errUnavailable}}}
	sleeper := &recordingSleeper{}
	p := NewPoller(client, time.Second, RetryPolicy{MaxAttempts: 3, Delay: time.Second}, sleeper.sleep, nil)

	_, err := p.Status(context.Background(), 3)
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("expected the last failure to be wrapped, got %v", err)
	}
	if len(client.calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", len(client.calls))
	}
}

func TestAwaitCompletion(t *testing.T) {
	var testCases = []struct {
		name          string
		responses     []response
		expected      model.BuildRecord
		expectedErr   bool
		expectedSleep []time.Duration
	}{
		{
			name:      "already finished",
			responses: []response{{status: model.StatusFailure}},
			expected:  model.BuildRecord{Number: 5, Status: model.StatusFailure},
		},
		{
			name: "polls until finished",
			responses: []response{
				{status: model.StatusRunning},
				{status: model.StatusRunning},
				{status: model.StatusSuccess},
			},
			expected:      model.BuildRecord{Number: 5, Status: model.StatusSuccess},
			expectedSleep: []time.Duration{10 * time.Second, 10 * time.Second},
		},
		{
			name: "first check tolerates a missing build",
			responses: []response{
				{err: errUnavailable},
				{status: model.StatusRunning},
				{status: model.StatusAborted},
			},
			expected:      model.BuildRecord{Number: 5, Status: model.StatusAborted},
			expectedSleep: []time.Duration{30 * time.Second, 10 * time.Second},
		},
		{
			name: "failure while polling is fatal",
			responses: []response{
				{status: model.StatusRunning},
				{err: errUnavailable},
			},
			expectedErr:   true,
			expectedSleep: []time.Duration{10 * time.Second},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client := &fakeStatusGetter{responses: testCase.responses}
			sleeper := &recordingSleeper{}
			p := NewPoller(client, 10*time.Second, defaultRetryPolicy, sleeper.sleep, metrics.New())

			actual, err := p.AwaitCompletion(context.Background(), 5)
			if (err != nil) != testCase.expectedErr {
				t.Fatalf("expected error %t, got %v", testCase.expectedErr, err)
			}
			if diff := cmp.Diff(testCase.expected, actual); diff != "" {
				t.Errorf("unexpected record: %s", diff)
			}
			if diff := cmp.Diff(testCase.expectedSleep, sleeper.slept); diff != "" {
				t.Errorf("unexpected sleeps: %s", diff)
			}
			for _, n := range client.calls {
				if n != 5 {
					t.Errorf("expected only build 5 to be polled, got %d", n)
				}
			}
		})
	}
}

func TestAwaitCompletionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeStatusGetter{responses: []response{{status: model.StatusRunning}}}
	sleeper := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	p := NewPoller(client, time.Second, defaultRetryPolicy, sleeper, nil)

	if _, err := p.AwaitCompletion(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(client.calls) != 1 {
		t.Errorf("expected polling to stop after cancellation, got %d calls", len(client.calls))
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRetryPolicy(t *testing.T) {
	expected := RetryPolicy{MaxAttempts: 2, Delay: 30 * time.Second}
	if diff := cmp.Diff(expected, defaultRetryPolicy); diff != "" {
		t.Errorf("unexpected default policy: %s", diff)
	}
}
