// Package jenkins talks to the Jenkins REST API of a single job: it reads
// build numbers and results and triggers new builds.
package jenkins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sourceplane/litejob/internal/model"
)

// UnexpectedResponseError is returned when the server answers with a status
// code other than the one the call requires
type UnexpectedResponseError struct {
	Method   string
	URL      string
	Expected int
	Actual   int
	Body     string
}

func (e *UnexpectedResponseError) Error() string {
	msg := fmt.Sprintf("%s %s: expected response code %d, got %d", e.Method, e.URL, e.Expected, e.Actual)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Build is the subset of a build's JSON representation the runner reads.
// Result is nil while the build is still running.
type Build struct {
	Number   *int    `json:"number"`
	Result   *string `json:"result"`
	Building bool    `json:"building"`
	URL      string  `json:"url"`
}

// Status maps the build result onto a build status
func (b Build) Status() model.BuildStatus {
	if b.Result == nil {
		return model.StatusRunning
	}
	return model.BuildStatus(*b.Result)
}

type adapter struct{}

func (a adapter) format(s string, i ...interface{}) string {
	builder := strings.Builder{}
	builder.WriteString(s)
	for _, x := range i {
		builder.WriteString(" ")
		builder.WriteString(fmt.Sprintf("%v", x))
	}
	return builder.String()
}

func (a adapter) Error(s string, i ...interface{}) {
	logrus.Error(a.format(s, i...))
}

func (a adapter) Info(s string, i ...interface{}) {
	logrus.Debug(a.format(s, i...))
}

func (a adapter) Debug(s string, i ...interface{}) {
	logrus.Debug(a.format(s, i...))
}

func (a adapter) Warn(s string, i ...interface{}) {
	logrus.Warn(a.format(s, i...))
}

var _ retryablehttp.LeveledLogger = adapter{}

// Opts configures a Client
type Opts struct {
	// The user to use for basic auth
	BasicAuthUser string
	// The API token to use for basic auth
	BasicAuthToken string
	// RetryMax bounds transport level retries of status requests that failed
	// to connect. Responses and trigger requests are never retried.
	RetryMax int
	// Timeout bounds a single HTTP request
	Timeout time.Duration
	// Fs is where file parameters are read from
	Fs afero.Fs
}

type Opt func(*Opts)

// WithBasicAuth authenticates every request with the user and API token
func WithBasicAuth(user, token string) Opt {
	return func(o *Opts) {
		o.BasicAuthUser = user
		o.BasicAuthToken = token
	}
}

// WithRetryMax sets the number of transport level retries
func WithRetryMax(retryMax int) Opt {
	return func(o *Opts) {
		o.RetryMax = retryMax
	}
}

// WithTimeout sets the timeout of a single request
func WithTimeout(timeout time.Duration) Opt {
	return func(o *Opts) {
		o.Timeout = timeout
	}
}

// Client calls the endpoints of one Jenkins job
type Client struct {
	jobURI  string
	opts    Opts
	http    *retryablehttp.Client
	trigger *retryablehttp.Client
}

// NewClient creates a client for the job at jobURI
func NewClient(jobURI string, opts ...Opt) *Client {
	o := Opts{RetryMax: 3, Timeout: 30 * time.Second, Fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}

	// A trigger that reached the server queues a build, so it is sent once
	return &Client{
		jobURI:  strings.TrimSuffix(jobURI, "/"),
		opts:    o,
		http:    newHTTPClient(o.RetryMax, o.Timeout),
		trigger: newHTTPClient(0, o.Timeout),
	}
}

func newHTTPClient(retryMax int, timeout time.Duration) *retryablehttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.HTTPClient.Timeout = timeout
	retryClient.Logger = adapter{}
	retryClient.CheckRetry = connectionRetryPolicy
	// Hand the final response back so status codes are checked by the caller
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient
}

// connectionRetryPolicy retries requests that never got a response. A
// received response, whatever its status code, is returned to the caller.
func connectionRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// JobURI returns the URI of the job the client talks to
func (c *Client) JobURI() string {
	return c.jobURI
}

// LastBuildNumber returns the number of the job's most recent build
func (c *Client) LastBuildNumber(ctx context.Context) (int, error) {
	build, err := c.getBuild(ctx, c.jobURI+"/lastBuild/api/json")
	if err != nil {
		return 0, err
	}
	if build.Number == nil {
		return 0, fmt.Errorf("last build of %s has no number", c.jobURI)
	}
	return *build.Number, nil
}

// BuildStatus returns the status of a build. A build without a result is
// reported as running.
func (c *Client) BuildStatus(ctx context.Context, number int) (model.BuildStatus, error) {
	build, err := c.getBuild(ctx, fmt.Sprintf("%s/%d/api/json", c.jobURI, number))
	if err != nil {
		return "", err
	}
	return build.Status(), nil
}

func (c *Client) getBuild(ctx context.Context, target string) (*Build, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(c.http, req, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var build Build
	if err := json.Unmarshal(body, &build); err != nil {
		return nil, fmt.Errorf("could not parse build response from %s: %w", target, err)
	}
	return &build, nil
}

// do performs the request and requires the expected status code
func (c *Client) do(client *retryablehttp.Client, req *retryablehttp.Request, expected int) ([]byte, error) {
	if c.opts.BasicAuthUser != "" {
		req.SetBasicAuth(c.opts.BasicAuthUser, c.opts.BasicAuthToken)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", req.Method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		logrus.WithError(err).Warn("Failed to read response body from Jenkins.")
	}
	if resp.StatusCode != expected {
		return nil, &UnexpectedResponseError{
			Method:   req.Method,
			URL:      redact(req.URL),
			Expected: expected,
			Actual:   resp.StatusCode,
			Body:     truncate(string(data), 512),
		}
	}
	return data, nil
}

// redact hides credentials and the trigger token in a URL
func redact(u *url.URL) string {
	query := u.Query()
	if query.Get("token") == "" {
		return u.Redacted()
	}
	query.Set("token", "REDACTED")
	clone := *u
	clone.RawQuery = query.Encode()
	return clone.Redacted()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
