// Package poller waits for builds to finish by polling their status.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sourceplane/litejob/internal/metrics"
	"github.com/sourceplane/litejob/internal/model"
)

// StatusGetter reads the status of a build
type StatusGetter interface {
	BuildStatus(ctx context.Context, number int) (model.BuildStatus, error)
}

// Poller waits for builds to leave the running state
type Poller struct {
	client   StatusGetter
	interval time.Duration
	retry    RetryPolicy
	sleep    Sleeper
	metrics  *metrics.Metrics
}

// NewPoller creates a poller that checks every interval. The first status
// check of a build follows the retry policy, since the server may not know
// about a freshly triggered build yet.
func NewPoller(client StatusGetter, interval time.Duration, retry RetryPolicy, sleep Sleeper, m *metrics.Metrics) *Poller {
	if sleep == nil {
		sleep = Sleep
	}
	return &Poller{
		client:   client,
		interval: interval,
		retry:    retry,
		sleep:    sleep,
		metrics:  m,
	}
}

// Status fetches the status of a build under the retry policy
func (p *Poller) Status(ctx context.Context, number int) (model.BuildStatus, error) {
	var status model.BuildStatus
	err := p.retry.Do(ctx, p.sleep, func(attempt int) error {
		if attempt > 1 {
			logrus.WithField("build", number).Info("Retrying to get the status of the build.")
		}
		var err error
		status, err = p.fetch(ctx, number)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get status of build #%d: %w", number, err)
	}
	return status, nil
}

func (p *Poller) fetch(ctx context.Context, number int) (model.BuildStatus, error) {
	p.metrics.StatusPolled()
	return p.client.BuildStatus(ctx, number)
}

// AwaitCompletion blocks until the build has a result. There is no upper
// bound on the wait.
func (p *Poller) AwaitCompletion(ctx context.Context, number int) (model.BuildRecord, error) {
	log := logrus.WithField("build", number)

	status, err := p.Status(ctx, number)
	if err != nil {
		return model.BuildRecord{}, err
	}

	var waited time.Duration
	for !status.Terminal() {
		if err := p.sleep(ctx, p.interval); err != nil {
			return model.BuildRecord{}, err
		}
		waited += p.interval
		log.WithField("waited", waited).Info("Waiting for the build to be completed.")

		if status, err = p.fetch(ctx, number); err != nil {
			return model.BuildRecord{}, fmt.Errorf("failed to get status of build #%d: %w", number, err)
		}
	}

	log.WithField("status", status).Info("Build completed.")
	p.metrics.BuildFinished(status, waited)
	return model.BuildRecord{Number: number, Status: status}, nil
}
