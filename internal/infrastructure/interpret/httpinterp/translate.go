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
	translateServiceName = "translation"
	msgEmptyTranslation  = "The translation service returned no text."
)

// Translated text fields checked in order.
var translationFields = []string{"translation", "translated_text", "text", "result.translation", "result.translated_text"}

// Translator renders a finished explanation into another language. It is
// used when the interpretation service did not mirror the summary itself.
type Translator struct {
	url        string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

func NewTranslator(url string, httpClient *http.Client, executor *resilience.Executor, logger *slog.Logger) *Translator {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		url:        strings.TrimRight(url, "/"),
		httpClient: httpClient,
		executor:   executor,
		logger:     logger,
	}
}

type translateRequest struct {
	Text       string `json:"text"`
	TargetLang string `json:"target_lang"`
}

func (t *Translator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	payload, err := json.Marshal(translateRequest{Text: text, TargetLang: targetLang})
	if err != nil {
		return "", fmt.Errorf("marshal translate request: %w", err)
	}

	var body []byte
	err = t.executor.Execute(ctx, "translate.request", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("create translate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("translate request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return loose.ReadHTTPError("Translate", "request", resp)
		}
		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read translate response: %w", err)
		}
		return nil
	}, loose.CountsAgainstBreaker)
	if err != nil {
		return "", loose.ToFailure(translateServiceName, domain.ErrInterpretationFailed, err)
	}

	obj, err := loose.Decode(body)
	if err != nil {
		return "", domain.NewFailure(domain.ErrInterpretationFailed,
			"The translation service returned an unreadable response.", fmt.Errorf("decode translate response: %w", err))
	}
	translated := strings.TrimSpace(loose.FirstString(obj, translationFields...))
	if translated == "" {
		return "", domain.NewFailure(domain.ErrInterpretationFailed, msgEmptyTranslation, nil)
	}
	t.logger.Debug("translation_received", "target_lang", targetLang, "chars", len(translated))
	return translated, nil
}
