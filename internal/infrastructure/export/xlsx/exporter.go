package xlsx

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetSummary        = "Summary"
	sheetFields         = "Fields"
	sheetItems          = "Items"
	sheetClarifications = "Clarifications"
	sheetText           = "Text"
	sheetSources        = "Sources"

	// Excel rejects longer cell values.
	maxCellChars = 32767
)

// Exporter renders a finished run as an XLSX workbook.
type Exporter struct {
	logger *slog.Logger
}

func NewExporter(logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger}
}

func (e *Exporter) ContentType() string {
	return ContentType
}

func (e *Exporter) Export(run domain.PipelineRun) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{sheetFields, sheetItems, sheetClarifications, sheetText, sheetSources} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	w := &sheetWriter{f: f}
	w.summary(run)
	w.fields(run)
	w.items(run)
	w.clarifications(run)
	w.text(run)
	w.sources(run)
	if w.err != nil {
		return nil, w.err
	}

	_ = f.SetColWidth(sheetSummary, "A", "A", 20)
	_ = f.SetColWidth(sheetSummary, "B", "B", 80)
	_ = f.SetColWidth(sheetFields, "A", "B", 24)
	_ = f.SetColWidth(sheetItems, "A", "A", 16)
	_ = f.SetColWidth(sheetItems, "B", "B", 64)
	_ = f.SetColWidth(sheetText, "B", "B", 100)
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	e.logger.Info("export_xlsx_ok",
		"run_id", run.ID,
		"sources", len(run.SourceFiles),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

type sheetWriter struct {
	f   *excelize.File
	err error
}

func (w *sheetWriter) row(sheet string, row int, values ...any) {
	if w.err != nil {
		return
	}
	for i, v := range values {
		if s, ok := v.(string); ok {
			v = truncate(s, maxCellChars)
		}
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			w.err = err
			return
		}
		if err := w.f.SetCellValue(sheet, cell, v); err != nil {
			w.err = fmt.Errorf("set %s!%s: %w", sheet, cell, err)
			return
		}
	}
}

func (w *sheetWriter) summary(run domain.PipelineRun) {
	rows := [][]any{
		{"Run ID", run.ID},
		{"Stage", string(run.Stage)},
		{"Status", run.Status},
		{"Target language", run.TargetLang},
		{"Started", formatTime(&run.StartedAt)},
		{"Finished", formatTime(run.FinishedAt)},
		{"Degraded", run.Degraded},
		{"Last error", run.LastError},
	}
	if run.Result != nil {
		rows = append(rows,
			[]any{"Summary", run.Result.Summary},
			[]any{"Translated summary", run.Result.TranslatedSummary},
		)
	}
	for i, r := range rows {
		w.row(sheetSummary, i+1, r...)
	}
}

func (w *sheetWriter) fields(run domain.PipelineRun) {
	w.row(sheetFields, 1, "Field", "Value", "Confidence", "Needs review")
	row := 2
	for _, name := range orderedFieldNames(run.Fields) {
		v := run.Fields[name]
		w.row(sheetFields, row, string(name), v.Value, v.Confidence, v.NeedsReview)
		row++
	}
}

func (w *sheetWriter) items(run domain.PipelineRun) {
	w.row(sheetItems, 1, "Category", "Item")
	if run.Result == nil {
		return
	}
	row := 2
	for _, group := range []struct {
		name  string
		items []string
	}{
		{"Identity", run.Result.IdentityItems},
		{"Payment", run.Result.PaymentItems},
		{"Other amounts", run.Result.OtherAmountItems},
	} {
		for _, item := range group.items {
			w.row(sheetItems, row, group.name, item)
			row++
		}
	}
}

func (w *sheetWriter) clarifications(run domain.PipelineRun) {
	w.row(sheetClarifications, 1, "Phrase", "Question", "Options")
	if run.Clarification == nil {
		return
	}
	for i, p := range run.Clarification.Prompts {
		w.row(sheetClarifications, i+2, p.Phrase, p.Question, strings.Join(p.Options, "\n"))
	}
}

func (w *sheetWriter) text(run domain.PipelineRun) {
	w.row(sheetText, 1, "Line", "Text")
	for i, line := range strings.Split(run.Text, "\n") {
		w.row(sheetText, i+2, i+1, strings.TrimRight(line, "\f\r"))
	}
}

func (w *sheetWriter) sources(run domain.PipelineRun) {
	w.row(sheetSources, 1, "Name", "Kind", "Declared MIME", "Bytes")
	for i, src := range run.SourceFiles {
		w.row(sheetSources, i+2, src.Name, string(src.Kind), src.DeclaredMIME, src.Size)
	}
}

// orderedFieldNames lists known fields in display order, then the rest sorted.
func orderedFieldNames(fields domain.Fields) []domain.FieldName {
	out := make([]domain.FieldName, 0, len(fields))
	seen := make(map[domain.FieldName]bool, len(fields))
	for _, name := range domain.KnownFields {
		if _, ok := fields[name]; ok {
			out = append(out, name)
			seen[name] = true
		}
	}
	var extra []domain.FieldName
	for name := range fields {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if n <= 0 || len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
