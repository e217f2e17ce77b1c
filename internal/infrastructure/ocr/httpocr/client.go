package httpocr

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/loose"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/sniff"
)

type Mode string

const (
	ModeSync  Mode = "sync"
	ModeAsync Mode = "async"
)

const (
	serviceName    = "OCR"
	fileNameHeader = "X-File-Name"
)

// Text fields checked in order on a successful response.
var textFields = []string{"text", "ocr_text", "result.text", "full_text", "content"}

type Options struct {
	Mode         Mode
	SyncPath     string
	StartPath    string
	StatusPath   string
	PollInterval time.Duration
	PollTimeout  time.Duration
	HTTPClient   *http.Client
	Executor     *resilience.Executor
	Logger       *slog.Logger
	// OnPoll is called after every status response.
	OnPoll func(job domain.ExtractionJob)
}

func (o Options) withDefaults() Options {
	if o.Mode != ModeAsync {
		o.Mode = ModeSync
	}
	if o.SyncPath == "" {
		o.SyncPath = "/api/ocr"
	}
	if o.StartPath == "" {
		o.StartPath = "/api/ocr/start"
	}
	if o.StatusPath == "" {
		o.StatusPath = "/api/ocr/status"
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 1500 * time.Millisecond
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 240 * time.Second
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 120 * time.Second}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OnPoll == nil {
		o.OnPoll = func(domain.ExtractionJob) {}
	}
	return o
}

// Client talks to the extraction service in either synchronous or job/poll mode.
type Client struct {
	baseURL string
	opts    Options
}

func New(baseURL string, opts Options) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts.withDefaults(),
	}
}

func (c *Client) Mode() Mode {
	return c.opts.Mode
}

func (c *Client) Extract(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	if c.opts.Mode == ModeAsync {
		jobID, err := c.StartJob(ctx, file)
		if err != nil {
			return "", err
		}
		job, err := c.PollJob(ctx, jobID)
		if err != nil {
			return "", err
		}
		return job.Text, nil
	}
	return c.ExtractSync(ctx, file)
}

// ExtractSync posts the file and reads the text from the response.
func (c *Client) ExtractSync(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	obj, err := c.postFile(ctx, "request", c.opts.SyncPath, file)
	if err != nil {
		return "", err
	}
	text := loose.FirstString(obj, textFields...)
	if text == "" {
		return "", domain.NewFailure(domain.ErrExtractionFailed, domain.MsgEmptyOCR, nil)
	}
	return text, nil
}

// StartJob submits the file and returns the job id.
func (c *Client) StartJob(ctx context.Context, file domain.ClassifiedFile) (string, error) {
	obj, err := c.postFile(ctx, "start", c.opts.StartPath, file)
	if err != nil {
		return "", err
	}
	jobID := loose.FirstString(obj, "job_id", "jobId", "id")
	if jobID == "" {
		return "", domain.NewFailure(domain.ErrExtractionFailed, domain.MsgNoJobID, nil)
	}
	c.opts.Logger.Info("ocr_job_started", "job_id", jobID, "file", file.File.Name)
	return jobID, nil
}

func (c *Client) postFile(ctx context.Context, operation, path string, file domain.ClassifiedFile) (loose.Object, error) {
	contentType := sniff.ResolveMIME(file)
	name := strings.TrimSpace(file.File.Name)
	if name == "" {
		name = "upload"
	}

	return c.call(ctx, operation, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(file.File.Data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(fileNameHeader, url.PathEscape(name))
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
}

func (c *Client) statusURL(jobID string) string {
	return c.baseURL + c.opts.StatusPath + "?job_id=" + url.QueryEscape(jobID)
}
