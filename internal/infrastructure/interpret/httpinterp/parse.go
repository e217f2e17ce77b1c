package httpinterp

import (
	"strings"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/loose"
)

var (
	summaryPaths = []string{
		"summary", "explanation", "english_explanation", "english_summary", "message",
		"result.summary", "result.explanation", "result.english_explanation", "result.english_summary",
	}
	translatedSummaryPaths = []string{"target_summary", "translated_summary", "spanish_explanation", "spanish_summary"}

	fieldsPaths         = []string{"fields", "extracted_fields", "result.fields"}
	identityPaths       = []string{"identity_items", "identity"}
	paymentPaths        = []string{"payment_items", "payment"}
	otherAmountPaths    = []string{"other_amounts_items", "other_amounts"}
	clarificationPaths  = []string{"clarifications", "ambiguities"}
	phrasePaths         = []string{"phrase", "word", "term", "source"}
	questionPaths       = []string{"prompt", "question"}
	meaningPaths        = []string{"meanings", "options", "senses"}
	wordClassPaths      = []string{"word_class", "pos", "part_of_speech"}
	translationPaths    = []string{"translation", "meaning", "target"}
	definitionPaths     = []string{"definition", "gloss", "description"}
	examplePaths        = []string{"examples", "example"}
	fieldValuePaths     = []string{"value", "text"}
	fieldConfidencePath = "confidence"
)

// ParseResult reads an interpretation response. Missing pieces default to empty.
func ParseResult(obj loose.Object, targetLang string) domain.InterpretationResult {
	result := domain.InterpretationResult{
		Summary:           loose.FirstString(obj, summaryPaths...),
		TranslatedSummary: loose.FirstString(obj, translatedSummaryPaths...),
		TargetLang:        firstNonEmpty(loose.FirstString(obj, "target_lang"), targetLang),
		Fields:            parseFields(obj),
		IdentityItems:     loose.Strings(obj, identityPaths...),
		PaymentItems:      loose.Strings(obj, paymentPaths...),
		OtherAmountItems:  loose.Strings(obj, otherAmountPaths...),
	}
	for _, raw := range loose.FirstList(obj, clarificationPaths...) {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if parsed, ok := parseAmbiguity(loose.Object(item)); ok {
			result.Clarifications = append(result.Clarifications, parsed)
		}
	}
	return result
}

func parseFields(obj loose.Object) domain.Fields {
	var raw loose.Object
	for _, p := range fieldsPaths {
		if raw = obj.Child(p); len(raw) > 0 {
			break
		}
	}
	fields := domain.Fields{}
	for key, value := range raw {
		name := domain.FieldName(strings.ToLower(strings.TrimSpace(key)))
		if name == "" {
			continue
		}
		fv, ok := parseFieldValue(value)
		if !ok {
			continue
		}
		fields[name] = fv
	}
	return fields
}

// parseFieldValue accepts a bare scalar or an object with value and confidence.
func parseFieldValue(value any) (domain.FieldValue, bool) {
	if m, ok := value.(map[string]any); ok {
		obj := loose.Object(m)
		fv := domain.FieldValue{Value: loose.FirstString(obj, fieldValuePaths...)}
		if conf, ok := loose.Number(obj.Get(fieldConfidencePath)); ok {
			fv.Confidence = conf
			fv.NeedsReview = conf < domain.ReviewConfidence
		}
		return fv, !fv.Empty()
	}
	fv := domain.FieldValue{Value: strings.TrimSpace(loose.Scalar(value))}
	return fv, !fv.Empty()
}

func parseAmbiguity(obj loose.Object) (domain.AmbiguityItem, bool) {
	item := domain.AmbiguityItem{
		Phrase:     loose.FirstString(obj, phrasePaths...),
		SourceLang: loose.FirstString(obj, "source_lang"),
		TargetLang: loose.FirstString(obj, "target_lang"),
		Question:   loose.FirstString(obj, questionPaths...),
	}
	for _, raw := range loose.FirstList(obj, meaningPaths...) {
		switch m := raw.(type) {
		case map[string]any:
			meaning := parseMeaning(loose.Object(m))
			if meaning.Translation != "" || meaning.Definition != "" {
				item.Meanings = append(item.Meanings, meaning)
			}
		default:
			if s := strings.TrimSpace(loose.Scalar(m)); s != "" {
				item.Meanings = append(item.Meanings, domain.Meaning{Translation: s})
			}
		}
	}
	if item.Phrase == "" && item.Question == "" {
		return domain.AmbiguityItem{}, false
	}
	return item, true
}

func parseMeaning(obj loose.Object) domain.Meaning {
	meaning := domain.Meaning{
		WordClass:   loose.FirstString(obj, wordClassPaths...),
		Translation: loose.FirstString(obj, translationPaths...),
		Definition:  loose.FirstString(obj, definitionPaths...),
		Examples:    loose.Strings(obj, examplePaths...),
	}
	if len(meaning.Examples) == 0 {
		if single := loose.FirstString(obj, examplePaths...); single != "" {
			meaning.Examples = []string{single}
		}
	}
	return meaning
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
