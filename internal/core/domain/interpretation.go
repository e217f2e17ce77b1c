package domain

import "strings"

type FieldName string

const (
	FieldAmountDue      FieldName = "amount_due"
	FieldDueDate        FieldName = "due_date"
	FieldAccountNumber  FieldName = "account_number"
	FieldSender         FieldName = "sender"
	FieldServiceAddress FieldName = "service_address"
)

// KnownFields lists the fields in display order.
var KnownFields = []FieldName{
	FieldAmountDue,
	FieldDueDate,
	FieldAccountNumber,
	FieldSender,
	FieldServiceAddress,
}

// ReviewConfidence is the confidence below which a value is flagged for review.
const ReviewConfidence = 0.75

type FieldValue struct {
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence,omitempty"`
	NeedsReview bool    `json:"needs_review,omitempty"`
}

func (v FieldValue) Empty() bool {
	return strings.TrimSpace(v.Value) == ""
}

type Fields map[FieldName]FieldValue

type InterpretationResult struct {
	Summary           string          `json:"summary"`
	TranslatedSummary string          `json:"translated_summary,omitempty"`
	TargetLang        string          `json:"target_lang"`
	Fields            Fields          `json:"fields"`
	IdentityItems     []string        `json:"identity_items"`
	PaymentItems      []string        `json:"payment_items"`
	OtherAmountItems  []string        `json:"other_amounts_items"`
	Clarifications    []AmbiguityItem `json:"clarifications"`
}

// AmbiguityItem is a source phrase with several plausible translations.
type AmbiguityItem struct {
	Phrase     string    `json:"phrase"`
	SourceLang string    `json:"source_lang,omitempty"`
	TargetLang string    `json:"target_lang,omitempty"`
	Question   string    `json:"question,omitempty"`
	Meanings   []Meaning `json:"meanings"`
}

type Meaning struct {
	WordClass   string   `json:"word_class,omitempty"`
	Translation string   `json:"translation"`
	Definition  string   `json:"definition,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

type ClarificationMode string

const (
	ClarifyNone    ClarificationMode = "none"
	ClarifyInline  ClarificationMode = "inline"
	ClarifyChannel ClarificationMode = "channel"
)

// ClarificationPrompt is one rendered ambiguity item.
type ClarificationPrompt struct {
	Phrase   string   `json:"phrase,omitempty"`
	Question string   `json:"question"`
	Options  []string `json:"options,omitempty"`
	Examples string   `json:"examples,omitempty"`
	Hint     string   `json:"hint,omitempty"`
}

// Lines flattens the prompt into display lines.
func (p ClarificationPrompt) Lines() []string {
	lines := make([]string, 0, len(p.Options)+3)
	lines = append(lines, p.Question)
	lines = append(lines, p.Options...)
	if p.Examples != "" {
		lines = append(lines, p.Examples)
	}
	if p.Hint != "" {
		lines = append(lines, p.Hint)
	}
	return lines
}

type Clarification struct {
	Mode    ClarificationMode     `json:"mode"`
	Prompts []ClarificationPrompt `json:"prompts,omitempty"`
}
