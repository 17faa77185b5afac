package jenkins

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/sourceplane/litejob/internal/model"
)

// WithFs sets the filesystem file parameters are read from
func WithFs(fs afero.Fs) Opt {
	return func(o *Opts) {
		o.Fs = fs
	}
}

// TriggerWithParameters triggers a parameterized build. Empty parameters are
// not sent, file parameters are uploaded as multipart parts and multi-value
// parameters are sent as repeated query parameters.
func (c *Client) TriggerWithParameters(ctx context.Context, params model.ParameterSet) error {
	req, err := c.newParameterizedRequest(ctx, params)
	if err != nil {
		return err
	}
	if _, err := c.do(c.trigger, req, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to trigger build: %w", err)
	}
	logrus.WithField("job", c.jobURI).Info("Jenkins build was triggered successfully.")
	return nil
}

// Trigger triggers a build without parameters, authenticated by the job's
// remote trigger token. The token may be empty.
func (c *Client) Trigger(ctx context.Context, token string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.simpleTriggerURL(token), nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	if _, err := c.do(c.trigger, req, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to trigger build: %w", err)
	}
	logrus.WithField("job", c.jobURI).Info("Jenkins build was triggered successfully.")
	return nil
}

func (c *Client) simpleTriggerURL(token string) string {
	return c.jobURI + "/" + string(model.TriggerSimple) + "?" + url.Values{"token": {token}}.Encode()
}

// parameterQuery splits the non-empty parameters into query values and
// file uploads
func parameterQuery(params model.ParameterSet) (url.Values, []model.Parameter) {
	query := url.Values{}
	var files []model.Parameter
	for _, p := range params.NonEmpty() {
		switch p.Kind {
		case model.ParameterFileUpload:
			files = append(files, p)
		default:
			for _, value := range p.Values() {
				query.Add(p.Name, value)
			}
		}
	}
	return query, files
}

func (c *Client) parameterizedURL(query url.Values) string {
	target := c.jobURI + "/" + string(model.TriggerWithParameters)
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (c *Client) newParameterizedRequest(ctx context.Context, params model.ParameterSet) (*retryablehttp.Request, error) {
	query, files := parameterQuery(params)

	var payload interface{}
	contentType := ""
	if len(files) > 0 {
		var body bytes.Buffer
		writer := multipart.NewWriter(&body)
		for _, file := range files {
			if err := c.attachFile(writer, file); err != nil {
				return nil, err
			}
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("could not finish multipart body: %w", err)
		}
		payload = body.Bytes()
		contentType = writer.FormDataContentType()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.parameterizedURL(query), payload)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

func (c *Client) attachFile(writer *multipart.Writer, param model.Parameter) error {
	f, err := c.opts.Fs.Open(param.Value)
	if err != nil {
		return fmt.Errorf("failed to open file for parameter %s: %w", param.Name, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile(param.Name, filepath.Base(param.Value))
	if err != nil {
		return fmt.Errorf("could not create file part for parameter %s: %w", param.Name, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read file for parameter %s: %w", param.Name, err)
	}
	return nil
}

// Preview describes the trigger request for a build without sending it
func (c *Client) Preview(mode model.TriggerMode, params model.ParameterSet, token string) string {
	if mode == model.TriggerSimple {
		target := c.simpleTriggerURL("")
		if token != "" {
			target = c.simpleTriggerURL("REDACTED")
		}
		return "GET " + target
	}

	query, files := parameterQuery(params)
	preview := "GET " + c.parameterizedURL(query)
	if len(files) > 0 {
		parts := make([]string, 0, len(files))
		for _, file := range files {
			parts = append(parts, fmt.Sprintf("%s=@%s", file.Name, file.Value))
		}
		sort.Strings(parts)
		preview += " [files: " + strings.Join(parts, ", ") + "]"
	}
	return preview
}
