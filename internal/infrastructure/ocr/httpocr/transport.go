package httpocr

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/loose"
)

const maxResponseBytes = 16 << 20

// call performs one request behind the breaker and decodes a JSON object.
func (c *Client) call(ctx context.Context, operation string, build func(context.Context) (*http.Request, error)) (loose.Object, error) {
	var body []byte
	err := c.opts.Executor.Execute(ctx, "ocr."+operation, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return fmt.Errorf("create ocr %s request: %w", operation, err)
		}
		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("ocr %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return loose.ReadHTTPError(serviceName, operation, resp)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read ocr %s response: %w", operation, err)
		}
		return nil
	}, loose.CountsAgainstBreaker)
	if err != nil {
		return nil, loose.ToFailure(serviceName, domain.ErrExtractionFailed, err)
	}

	obj, err := loose.Decode(body)
	if err != nil {
		return nil, domain.NewFailure(domain.ErrExtractionFailed,
			"The OCR service returned an unreadable response.", fmt.Errorf("decode ocr %s response: %w", operation, err))
	}
	return obj, nil
}
