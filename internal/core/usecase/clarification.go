package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

const (
	assistantRole      = "assistant"
	clarificationIntro = "I found a couple things that could mean two different things. Which one do you mean?"
)

// ClarificationPresenter renders ambiguity items either inline or through a
// chat side-channel when one is reachable.
type ClarificationPresenter struct {
	channel ports.ChatChannel
	logger  *slog.Logger
}

func NewClarificationPresenter(channel ports.ChatChannel, logger *slog.Logger) *ClarificationPresenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClarificationPresenter{channel: channel, logger: logger}
}

// Present renders items in input order. No items means no clarification.
func (p *ClarificationPresenter) Present(ctx context.Context, items []domain.AmbiguityItem, targetLang string) domain.Clarification {
	if len(items) == 0 {
		return domain.Clarification{Mode: domain.ClarifyNone}
	}

	prompts := p.Render(items, targetLang)
	if p.channel != nil && p.channel.Available(ctx) {
		err := p.push(ctx, prompts)
		if err == nil {
			return domain.Clarification{Mode: domain.ClarifyChannel, Prompts: prompts}
		}
		p.logger.Warn("clarification_channel_failed", "error", err, "items", len(items))
	}
	return domain.Clarification{Mode: domain.ClarifyInline, Prompts: prompts}
}

func (p *ClarificationPresenter) Render(items []domain.AmbiguityItem, targetLang string) []domain.ClarificationPrompt {
	prompts := make([]domain.ClarificationPrompt, 0, len(items))
	for _, item := range items {
		prompts = append(prompts, renderItem(item, targetLang))
	}
	return prompts
}

func (p *ClarificationPresenter) push(ctx context.Context, prompts []domain.ClarificationPrompt) error {
	if err := p.channel.Say(ctx, assistantRole, clarificationIntro); err != nil {
		return err
	}
	for _, prompt := range prompts {
		lines := prompt.Lines()
		if err := p.channel.SayBullets(ctx, assistantRole, lines[0], lines[1:]); err != nil {
			return err
		}
	}
	return nil
}

func renderItem(item domain.AmbiguityItem, targetLang string) domain.ClarificationPrompt {
	phrase := strings.TrimSpace(item.Phrase)
	question := strings.TrimSpace(item.Question)
	if len(item.Meanings) == 0 {
		if question == "" {
			question = meaningQuestion(phrase)
		}
		return domain.ClarificationPrompt{Phrase: phrase, Question: question}
	}
	// The service's own question is used only when there is no phrase to ask about.
	if phrase != "" || question == "" {
		question = meaningQuestion(phrase)
	}

	prompt := domain.ClarificationPrompt{
		Phrase:   phrase,
		Question: question,
		Options:  make([]string, 0, len(item.Meanings)),
	}
	var examples []string
	for _, meaning := range item.Meanings {
		prompt.Options = append(prompt.Options, formatMeaning(meaning))
		for _, example := range meaning.Examples {
			if example = strings.TrimSpace(example); example != "" {
				examples = append(examples, example)
			}
		}
	}
	if len(examples) > 0 {
		prompt.Examples = "Examples: " + strings.Join(examples, "; ")
	}

	lang := item.TargetLang
	if strings.TrimSpace(lang) == "" {
		lang = targetLang
	}
	prompt.Hint = fmt.Sprintf("Pick the meaning you intended and the translation will be shown in %s.", LanguageName(lang))
	return prompt
}

func meaningQuestion(phrase string) string {
	return fmt.Sprintf("Which meaning of '%s' did you intend?", phrase)
}

func formatMeaning(m domain.Meaning) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(m.Translation))
	if wc := strings.TrimSpace(m.WordClass); wc != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("(" + wc + ")")
	}
	if def := strings.TrimSpace(m.Definition); def != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(def)
	}
	return b.String()
}

// LanguageName returns the English name of a BCP 47 code, or the code itself.
func LanguageName(code string) string {
	code = strings.TrimSpace(code)
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// NormalizeLanguage validates a language code, falling back when it is empty.
func NormalizeLanguage(code, fallback string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		code = fallback
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "parse language", err)
	}
	return tag.String(), nil
}

// SameLanguage compares the base languages of two codes, so "en" and "en-US" match.
func SameLanguage(a, b string) bool {
	ta, errA := language.Parse(strings.TrimSpace(a))
	tb, errB := language.Parse(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	baseA, _ := ta.Base()
	baseB, _ := tb.Base()
	return baseA == baseB
}
