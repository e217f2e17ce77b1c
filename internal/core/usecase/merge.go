package usecase

import (
	"strings"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

// MergeFields combines page results so that the first non-empty value wins.
// Empty values are dropped and never overwrite an earlier page.
func MergeFields(first, next domain.Fields) domain.Fields {
	out := make(domain.Fields, len(first)+len(next))
	for name, value := range first {
		if !value.Empty() {
			out[name] = value
		}
	}
	for name, value := range next {
		if value.Empty() {
			continue
		}
		if current, ok := out[name]; ok && !current.Empty() {
			continue
		}
		out[name] = value
	}
	return out
}

// MergeResults folds the interpretation of a later batch into acc.
// Lists and clarifications keep their order and are not deduplicated.
func MergeResults(acc *domain.InterpretationResult, next domain.InterpretationResult) *domain.InterpretationResult {
	if acc == nil {
		out := next
		out.Fields = MergeFields(nil, next.Fields)
		return &out
	}

	out := *acc
	out.Summary = joinNonEmpty(acc.Summary, next.Summary)
	out.TranslatedSummary = joinNonEmpty(acc.TranslatedSummary, next.TranslatedSummary)
	if out.TargetLang == "" {
		out.TargetLang = next.TargetLang
	}
	out.Fields = MergeFields(acc.Fields, next.Fields)
	out.IdentityItems = appendCopy(acc.IdentityItems, next.IdentityItems)
	out.PaymentItems = appendCopy(acc.PaymentItems, next.PaymentItems)
	out.OtherAmountItems = appendCopy(acc.OtherAmountItems, next.OtherAmountItems)
	out.Clarifications = append(append([]domain.AmbiguityItem(nil), acc.Clarifications...), next.Clarifications...)
	return &out
}

func joinNonEmpty(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

func appendCopy(a, b []string) []string {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
