// Package kie talks to the KIE.ai job API: create a task, poll it until it
// settles, then download the produced file.
package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/digkill/visionhub/internal/provider"
)

const providerName = "kie"

const (
	DefaultPollInterval     = 2 * time.Second
	DefaultMaxPolls         = 150
	DefaultMaxDownloadBytes = 200 << 20
)

type Client struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	log          *slog.Logger
	pollInterval time.Duration
	maxPolls     int
	maxDownload  int64
}

type Options struct {
	APIKey  string
	BaseURL string
	// HTTPClient overrides the default client. Deadlines come from the caller's context.
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
	// AttemptTimeout is the per-call deadline callers apply. When set, polling
	// gives up early enough to report a pending task before that deadline hits.
	AttemptTimeout   time.Duration
	MaxDownloadBytes int64
}

type task struct {
	Model string         `json:"model"`
	Input map[string]any `json:"input"`
}

func NewClient(opts Options, log *slog.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = DefaultMaxPolls
	}
	if limit := pollsWithin(opts.AttemptTimeout, interval); limit > 0 && limit < maxPolls {
		maxPolls = limit
	}
	maxDownload := opts.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = DefaultMaxDownloadBytes
	}
	return &Client{
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   httpClient,
		log:          log,
		pollInterval: interval,
		maxPolls:     maxPolls,
		maxDownload:  maxDownload,
	}
}

// pollsWithin returns how many polls fit in three quarters of timeout, leaving
// the rest for task creation and the download. Zero means no limit.
func pollsWithin(timeout, interval time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	polls := int(timeout * 3 / 4 / interval)
	if polls < 1 {
		polls = 1
	}
	return polls
}

// run creates the task, waits for its first result URL and downloads it.
func (c *Client) run(ctx context.Context, t task) (*provider.Media, error) {
	taskID, err := c.createTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	resultURL, err := c.waitForResult(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, resultURL)
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	ref := &url.URL{Path: path}
	if query != nil {
		ref.RawQuery = query.Encode()
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *Client) createTask(ctx context.Context, t task) (string, error) {
	fullURL, err := c.endpoint("/api/v1/jobs/createTask", nil)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var created struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}
	if err := c.doJSON(req, &created); err != nil {
		return "", err
	}
	if created.Code != http.StatusOK {
		return "", envelopeError(created.Code, created.Msg)
	}
	if created.Data.TaskID == "" {
		return "", errors.New("empty taskId in response")
	}
	if c.log != nil {
		c.log.Info("kie task created", "task_id", created.Data.TaskID, "model", t.Model)
	}
	return created.Data.TaskID, nil
}

func (c *Client) waitForResult(ctx context.Context, taskID string) (string, error) {
	fullURL, err := c.endpoint("/api/v1/jobs/recordInfo", url.Values{"taskId": {taskID}})
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return "", fmt.Errorf("new request: %w", err)
		}

		var status struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
			Data struct {
				State      string `json:"state"`
				ResultJSON string `json:"resultJson"`
				FailCode   string `json:"failCode"`
				FailMsg    string `json:"failMsg"`
			} `json:"data"`
		}
		if err := c.doJSON(req, &status); err != nil {
			return "", fmt.Errorf("poll task %s: %w", taskID, err)
		}
		if status.Code != http.StatusOK {
			return "", envelopeError(status.Code, status.Msg)
		}

		switch status.Data.State {
		case "success":
			var result struct {
				ResultURLs []string `json:"resultUrls"`
			}
			if err := json.Unmarshal([]byte(status.Data.ResultJSON), &result); err != nil {
				return "", fmt.Errorf("parse resultJson: %w", err)
			}
			if len(result.ResultURLs) == 0 {
				return "", provider.ErrNoMedia
			}
			return result.ResultURLs[0], nil
		case "fail":
			msg := status.Data.FailMsg
			if msg == "" {
				msg = "unknown error"
			}
			if c.log != nil {
				c.log.Error("kie task failed", "task_id", taskID, "fail_code", status.Data.FailCode, "fail_msg", msg)
			}
			return "", fmt.Errorf("task failed: %s (code: %s)", msg, status.Data.FailCode)
		case "waiting", "generating", "processing", "queued", "queueing":
		default:
			return "", fmt.Errorf("unknown task state: %s", status.Data.State)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", provider.Transient(fmt.Errorf("task %s still pending after %d polls", taskID, c.maxPolls))
}

func (c *Client) download(ctx context.Context, resultURL string) (*provider.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.Transient(fmt.Errorf("download result: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	if int64(len(data)) > c.maxDownload {
		return nil, fmt.Errorf("result exceeds %d bytes", c.maxDownload)
	}
	if resp.StatusCode >= 300 {
		return nil, &provider.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: truncateBody(data)}
	}
	if len(data) == 0 {
		return nil, provider.ErrNoMedia
	}
	mimeType := resp.Header.Get("Content-Type")
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return &provider.Media{Data: data, MIMEType: mimeType}, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return provider.Transient(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("kie request failed", "status", resp.StatusCode, "path", req.URL.Path, "body", truncateBody(raw))
		}
		return &provider.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w (body=%s)", err, truncateBody(raw))
	}
	return nil
}

// envelopeError turns a non-200 code inside a 200 response into a StatusError
// so rate limits and outages reported that way stay retryable.
func envelopeError(code int, msg string) error {
	return &provider.StatusError{Provider: providerName, StatusCode: code, Body: msg}
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
