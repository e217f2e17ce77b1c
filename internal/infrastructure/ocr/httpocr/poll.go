package httpocr

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/loose"
)

// PollJob polls the status endpoint at a fixed interval until the job is done
// or failed. The timeout is wall-clock and independent of the number of polls.
// Cancelling ctx stops polling immediately.
func (c *Client) PollJob(ctx context.Context, jobID string) (domain.ExtractionJob, error) {
	job := domain.ExtractionJob{ID: jobID, Status: domain.JobPending}

	pollCtx, cancel := context.WithTimeout(ctx, c.opts.PollTimeout)
	defer cancel()

	for {
		obj, err := c.call(pollCtx, "status", func(ctx context.Context) (*http.Request, error) {
			return http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL(jobID), nil)
		})
		if err != nil {
			return job, c.pollError(ctx, pollCtx, err)
		}

		job.Polls++
		applyStatus(&job, obj)
		c.opts.OnPoll(job)
		c.opts.Logger.Debug("ocr_poll", "job_id", jobID, "status", job.Status, "polls", job.Polls)

		switch job.Status {
		case domain.JobDone:
			if job.Text == "" {
				return job, domain.NewFailure(domain.ErrExtractionFailed, domain.MsgEmptyOCR, nil)
			}
			return job, nil
		case domain.JobFailed:
			return job, domain.NewFailure(domain.ErrExtractionFailed, job.Error, nil)
		}

		timer := time.NewTimer(c.opts.PollInterval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return job, c.pollError(ctx, pollCtx, pollCtx.Err())
		case <-timer.C:
		}
	}
}

func applyStatus(job *domain.ExtractionJob, obj loose.Object) {
	raw := strings.ToLower(loose.FirstString(obj, "status", "state"))
	job.Status = domain.ParseJobStatus(raw)
	switch job.Status {
	case domain.JobDone:
		job.Text = loose.FirstString(obj, textFields...)
	case domain.JobFailed:
		job.Error = loose.FirstString(obj, "error", "message")
		if job.Error == "" {
			job.Error = domain.MsgOCRJobFailed
		}
	}
}

// pollError tells a caller cancellation apart from the poll deadline.
func (c *Client) pollError(parent, pollCtx context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if pollCtx.Err() != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		return domain.NewFailure(domain.ErrExtractionFailed, domain.MsgOCRTimeout, err)
	}
	return err
}
