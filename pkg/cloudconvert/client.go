// Package cloudconvert is a small client for the parts of the CloudConvert v2 API the bot
// uses: a job that imports an uploaded file, converts it and exports it as a URL.
package cloudconvert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/dskvich/sticker-pack-bot/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.cloudconvert.com/v2"
	DefaultSyncURL = "https://sync.api.cloudconvert.com/v2"
)

type Client struct {
	apiKey  string
	baseURL string
	syncURL string
	http    *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithSyncURL(url string) Option {
	return func(c *Client) { c.syncURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		syncURL: DefaultSyncURL,
		http:    cleanhttp.DefaultPooledClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateJob starts a job. The returned job carries the upload form of its
// import/upload task.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) (*Job, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}

	var resp jobResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body), &resp); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &resp.Data, nil
}

// WaitJob blocks until the job finished or failed.
func (c *Client) WaitJob(ctx context.Context, jobID string) (*Job, error) {
	var resp jobResponse
	if err := c.do(ctx, http.MethodGet, c.syncURL+"/jobs/"+jobID, nil, &resp); err != nil {
		return nil, fmt.Errorf("waiting for job %s: %w", jobID, err)
	}
	return &resp.Data, nil
}

// Upload posts the file to the form of an import/upload task.
func (c *Client) Upload(ctx context.Context, form *UploadForm, filename string, file io.Reader) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.Parameters {
		if err := mw.WriteField(k, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("writing form field %s: %w", k, err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copying file into form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, form.URL, &buf)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading file: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("uploading file: %w", newAPIError(resp))
	}
	return nil
}

// Download streams url into w.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("downloading result: %w", err)
	}
	defer closeBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading result: %w", newAPIError(resp))
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer closeBody(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		apiErr.Message, apiErr.Code = payload.Message, payload.Code
	} else {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	return apiErr
}

// parseRetryAfter accepts both forms of the header: seconds and an HTTP date.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d.Round(time.Second)
		}
	}
	return 0
}

func closeBody(body io.ReadCloser) {
	if err := body.Close(); err != nil {
		slog.Error("closing body", logger.Err(err))
	}
}
