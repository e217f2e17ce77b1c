package httpinterp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/loose"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/resilience"
)

const (
	serviceName      = "interpretation"
	maxResponseBytes = 8 << 20
)

type Client struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func New(url string, httpClient *http.Client, executor *resilience.Executor, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:        strings.TrimRight(url, "/"),
		httpClient: httpClient,
		executor:   executor,
		logger:     logger,
	}
}

type interpretRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
	UILang     string `json:"ui_lang"`
}

// Interpret posts the text once and parses whatever the service returned.
// Every response field is optional.
func (c *Client) Interpret(ctx context.Context, text, targetLang, uiLang string) (domain.InterpretationResult, error) {
	payload, err := json.Marshal(interpretRequest{Text: text, TargetLang: targetLang, UILang: uiLang})
	if err != nil {
		return domain.InterpretationResult{}, fmt.Errorf("marshal interpret request: %w", err)
	}

	var body []byte
	err = c.executor.Execute(ctx, "interpret.request", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create interpret request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("interpret request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return loose.ReadHTTPError("Interpret", "request", resp)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read interpret response: %w", err)
		}
		return nil
	}, loose.CountsAgainstBreaker)
	if err != nil {
		return domain.InterpretationResult{}, loose.ToFailure(serviceName, domain.ErrInterpretationFailed, err)
	}

	obj, err := loose.Decode(body)
	if err != nil {
		return domain.InterpretationResult{}, domain.NewFailure(domain.ErrInterpretationFailed,
			"The interpretation service returned an unreadable response.", fmt.Errorf("decode interpret response: %w", err))
	}

	result := ParseResult(obj, targetLang)
	c.logger.Debug("interpretation_parsed",
		"fields", len(result.Fields),
		"clarifications", len(result.Clarifications),
		"summary_chars", len(result.Summary),
	)
	return result, nil
}
