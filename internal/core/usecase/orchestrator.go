package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/ports"
)

// DefaultPageBreak separates page texts in a multi-page run.
const DefaultPageBreak = "\n\f\n"

const (
	msgCancelled          = "Processing was cancelled."
	msgExtractionFallback = "Could not read text from this file."
	msgInternal           = "Something went wrong while processing your document."
	msgBusy               = "A document is already being processed. Please wait for it to finish."
)

var errStaleRun = errors.New("pipeline run superseded")

type PipelineDeps struct {
	Classifier  ports.FileClassifier
	Normalizer  ports.FileNormalizer
	TextReader  ports.TextExtractor
	Extractor   ports.TextExtractor
	Interpreter ports.Interpreter
	Translator  ports.Translator
	Presenter   *ClarificationPresenter
	Batcher     ports.PageBatcher
	Usage       *UsageGate
	Observer    ports.PipelineObserver
	Logger      *slog.Logger
}

type PipelineOptions struct {
	DefaultTargetLang string
	DefaultUILang     string
	PageBreak         string
}

// PipelineOrchestrator drives one submission at a time through
// classification, normalization, extraction and interpretation.
type PipelineOrchestrator struct {
	deps PipelineDeps
	opts PipelineOptions

	now   func() time.Time
	newID func() string

	mu         sync.Mutex
	run        *domain.PipelineRun
	generation uint64
	cancel     context.CancelFunc
	stageStart time.Time
}

func NewPipelineOrchestrator(deps PipelineDeps, opts PipelineOptions) *PipelineOrchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Presenter == nil {
		deps.Presenter = NewClarificationPresenter(nil, deps.Logger)
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if opts.DefaultTargetLang == "" {
		opts.DefaultTargetLang = "en"
	}
	if opts.DefaultUILang == "" {
		opts.DefaultUILang = "en"
	}
	if opts.PageBreak == "" {
		opts.PageBreak = DefaultPageBreak
	}
	return &PipelineOrchestrator{
		deps:  deps,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Run processes sub and blocks until the run is finished. A run that ends in
// the error stage is returned together with its failure.
func (o *PipelineOrchestrator) Run(ctx context.Context, sub domain.Submission) (domain.PipelineRun, error) {
	h, sub, err := o.begin(ctx, sub)
	if err != nil {
		return domain.PipelineRun{}, err
	}
	defer o.release(h.gen)
	return o.execute(h.ctx, h.gen, sub)
}

// Start begins processing in the background and returns the run id.
// The run outlives ctx; use Clear to cancel it.
func (o *PipelineOrchestrator) Start(ctx context.Context, sub domain.Submission) (string, error) {
	h, sub, err := o.begin(context.WithoutCancel(ctx), sub)
	if err != nil {
		return "", err
	}
	go func() {
		defer o.release(h.gen)
		_, _ = o.execute(h.ctx, h.gen, sub)
	}()
	return h.id, nil
}

func (o *PipelineOrchestrator) Current() (domain.PipelineRun, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return domain.PipelineRun{Stage: domain.StageIdle}, false
	}
	return o.run.Snapshot(), true
}

func (o *PipelineOrchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run != nil && o.run.Stage.Busy()
}

// Clear cancels any in-flight run and returns to idle. Results that arrive
// for the cleared run are discarded.
func (o *PipelineOrchestrator) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.run != nil {
		o.deps.Logger.Info("pipeline_cleared", "run_id", o.run.ID, "stage", o.run.Stage)
	}
	o.generation++
	o.run = nil
}

type runHandle struct {
	ctx context.Context
	gen uint64
	id  string
}

func (o *PipelineOrchestrator) begin(ctx context.Context, sub domain.Submission) (runHandle, domain.Submission, error) {
	if len(sub.Files) == 0 {
		return runHandle{}, sub, domain.WrapError(domain.ErrInvalidInput, "pipeline submit", errors.New("at least one file is required"))
	}
	targetLang, err := NormalizeLanguage(sub.TargetLang, o.opts.DefaultTargetLang)
	if err != nil {
		return runHandle{}, sub, err
	}
	uiLang, err := NormalizeLanguage(sub.UILang, o.opts.DefaultUILang)
	if err != nil {
		return runHandle{}, sub, err
	}
	sub.TargetLang, sub.UILang = targetLang, uiLang

	if o.Busy() {
		return runHandle{}, sub, domain.NewFailure(domain.ErrBusy, msgBusy, nil)
	}
	if err := o.deps.Usage.Check(ctx, sub.ClientID); err != nil {
		return runHandle{}, sub, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	// Re-checked under the lock: another submission may have started during the usage check.
	if o.run != nil && o.run.Stage.Busy() {
		return runHandle{}, sub, domain.NewFailure(domain.ErrBusy, msgBusy, nil)
	}

	sources := make([]domain.SourceFile, 0, len(sub.Files))
	for _, f := range sub.Files {
		sources = append(sources, domain.SourceFile{Name: f.Name, DeclaredMIME: f.DeclaredMIME, Size: f.Size()})
	}

	runCtx, cancel := context.WithCancel(ctx)
	o.generation++
	o.cancel = cancel
	o.stageStart = o.now()
	o.run = &domain.PipelineRun{
		ID:          o.newID(),
		Stage:       domain.StageIdle,
		TargetLang:  targetLang,
		UILang:      uiLang,
		PageCount:   len(sub.Files),
		SourceFiles: sources,
		StartedAt:   o.stageStart,
	}
	o.deps.Logger.Info("pipeline_started", "run_id", o.run.ID, "pages", len(sub.Files), "target_lang", targetLang)
	o.transitionLocked(domain.StageClassifying)
	return runHandle{ctx: runCtx, gen: o.generation, id: o.run.ID}, sub, nil
}

// release drops the cancel func of a finished run unless the run was replaced.
func (o *PipelineOrchestrator) release(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.generation && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *PipelineOrchestrator) execute(ctx context.Context, gen uint64, sub domain.Submission) (run domain.PipelineRun, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.deps.Logger.Error("pipeline_panic", "panic", fmt.Sprint(r))
			run, err = o.fail(gen, domain.NewFailure(o.stageKind(gen), msgInternal, fmt.Errorf("panic: %v", r)))
		}
	}()

	classified := make([]domain.ClassifiedFile, 0, len(sub.Files))
	for i, file := range sub.Files {
		cf := o.deps.Classifier.Classify(file)
		if !o.update(gen, func(r *domain.PipelineRun) { r.SourceFiles[i].Kind = cf.Kind }) {
			return o.stale()
		}
		if cf.Kind == domain.KindUnsupported {
			o.deps.Observer.FileRejected(file.Extension())
			return o.fail(gen, domain.NewFailure(domain.ErrRejectedInput, domain.MsgUnsupportedFile, fmt.Errorf("file %q", file.Name)))
		}
		classified = append(classified, cf)
	}

	pages := make([]string, 0, len(classified))
	var notes []string
	for i, cf := range classified {
		page := i + 1
		if !o.update(gen, func(r *domain.PipelineRun) { r.Page = page }) {
			return o.stale()
		}
		text, err := o.extractPage(ctx, gen, cf)
		if errors.Is(err, errStaleRun) || !o.current(gen) {
			return o.stale()
		}
		if err != nil {
			failure := asFailure(domain.ErrExtractionFailed, msgExtractionFallback, err)
			if len(pages) == 0 {
				return o.fail(gen, failure)
			}
			// Earlier pages are kept and still interpreted.
			o.deps.Logger.Warn("page_extraction_failed", "run_id", o.runID(), "page", page, "error", err)
			notes = append(notes, fmt.Sprintf("Page %d: %s", page, domain.UserMessage(failure)))
			break
		}
		pages = append(pages, text)
		joined := strings.Join(pages, o.opts.PageBreak)
		o.update(gen, func(r *domain.PipelineRun) { r.Text = joined })
	}

	if !o.transition(gen, domain.StageInterpreting) {
		return o.stale()
	}

	batches := []string{strings.Join(pages, o.opts.PageBreak)}
	if o.deps.Batcher != nil {
		batches = o.deps.Batcher.Batch(pages)
	}

	var merged *domain.InterpretationResult
	for _, batch := range batches {
		res, err := o.deps.Interpreter.Interpret(ctx, batch, sub.TargetLang, sub.UILang)
		if !o.current(gen) {
			return o.stale()
		}
		if err != nil {
			failure := asFailure(domain.ErrInterpretationFailed, "", err)
			o.deps.Logger.Warn("interpretation_failed", "run_id", o.runID(), "error", err)
			notes = append(notes, domain.UserMessage(failure))
			break
		}
		if res.TargetLang == "" {
			res.TargetLang = sub.TargetLang
		}
		merged = MergeResults(merged, res)
	}

	if merged == nil {
		// Text was extracted, so the run still succeeds with the raw text and no summary.
		return o.finish(gen, func(r *domain.PipelineRun) {
			r.Degraded = true
			r.Fields = domain.Fields{}
			r.LastError = strings.Join(notes, " ")
		})
	}

	var translateFailed bool
	if o.needsTranslation(merged, sub) {
		if !o.update(gen, func(r *domain.PipelineRun) { r.Status = translatingStatus(sub.TargetLang) }) {
			return o.stale()
		}
		translated, err := o.deps.Translator.Translate(ctx, merged.Summary, sub.TargetLang)
		if !o.current(gen) {
			return o.stale()
		}
		if err != nil {
			// The explanation is still shown, only without its translation.
			failure := asFailure(domain.ErrInterpretationFailed, "", err)
			o.deps.Logger.Warn("translation_failed", "run_id", o.runID(), "target_lang", sub.TargetLang, "error", err)
			notes = append(notes, domain.UserMessage(failure))
			translateFailed = true
		} else {
			merged.TranslatedSummary = translated
		}
	}

	clarification := o.deps.Presenter.Present(ctx, merged.Clarifications, sub.TargetLang)
	if clarification.Mode != domain.ClarifyNone {
		o.deps.Observer.ClarificationPresented(clarification.Mode, len(merged.Clarifications))
	}

	run, err = o.finish(gen, func(r *domain.PipelineRun) {
		r.Result = merged
		r.Fields = merged.Fields
		r.Degraded = translateFailed
		r.LastError = strings.Join(notes, " ")
		if clarification.Mode != domain.ClarifyNone {
			r.Clarifying = true
			r.Clarification = &clarification
		}
	})
	if err == nil {
		o.deps.Usage.Record(ctx, sub.ClientID)
	}
	return run, err
}

// needsTranslation reports whether the summary must be translated separately
// because the interpretation service did not mirror it in the target language.
func (o *PipelineOrchestrator) needsTranslation(res *domain.InterpretationResult, sub domain.Submission) bool {
	if o.deps.Translator == nil || strings.TrimSpace(res.TranslatedSummary) != "" || strings.TrimSpace(res.Summary) == "" {
		return false
	}
	return !SameLanguage(sub.TargetLang, sub.UILang)
}

func (o *PipelineOrchestrator) extractPage(ctx context.Context, gen uint64, cf domain.ClassifiedFile) (string, error) {
	if cf.NeedsNormalization && o.deps.Normalizer != nil {
		if !o.transition(gen, domain.StageNormalizing) {
			return "", errStaleRun
		}
		normalized, err := o.deps.Normalizer.Normalize(ctx, cf)
		if err != nil {
			o.deps.Logger.Warn("normalize_failed", "run_id", o.runID(), "file", cf.File.Name, "error", err)
		} else {
			cf = normalized
		}
	}

	if !o.transition(gen, domain.StageExtracting) {
		return "", errStaleRun
	}

	reader := o.deps.Extractor
	if cf.Kind == domain.KindPlainText && o.deps.TextReader != nil {
		reader = o.deps.TextReader
	}
	text, err := reader.Extract(ctx, cf)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.NewFailure(domain.ErrExtractionFailed, domain.MsgEmptyOCR, nil)
	}
	return text, nil
}

func (o *PipelineOrchestrator) current(gen uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return gen == o.generation && o.run != nil
}

// stageKind is the error kind for a failure in the run's current stage.
func (o *PipelineOrchestrator) stageKind(gen uint64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.generation && o.run != nil && o.run.Stage == domain.StageInterpreting {
		return domain.ErrInterpretationFailed
	}
	return domain.ErrExtractionFailed
}

func (o *PipelineOrchestrator) runID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.run == nil {
		return ""
	}
	return o.run.ID
}

// update applies fn to the run if gen is still the active generation.
func (o *PipelineOrchestrator) update(gen uint64, fn func(r *domain.PipelineRun)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.run == nil {
		return false
	}
	fn(o.run)
	return true
}

func (o *PipelineOrchestrator) transition(gen uint64, to domain.Stage) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.run == nil {
		return false
	}
	o.transitionLocked(to)
	return true
}

func (o *PipelineOrchestrator) transitionLocked(to domain.Stage) {
	now := o.now()
	from := o.run.Stage
	elapsed := now.Sub(o.stageStart)
	o.stageStart = now

	o.run.Stage = to
	o.run.Status = statusLine(to, o.run.Page, o.run.PageCount)
	o.deps.Observer.StageChanged(o.run.ID, from, to, elapsed)
	o.deps.Logger.Info("pipeline_stage",
		"run_id", o.run.ID,
		"from", from,
		"to", to,
		"page", o.run.Page,
		"elapsed_ms", float64(elapsed.Microseconds())/1000.0,
	)
}

func (o *PipelineOrchestrator) finish(gen uint64, fn func(r *domain.PipelineRun)) (domain.PipelineRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.run == nil {
		return domain.PipelineRun{}, domain.WrapError(domain.ErrNoRun, "pipeline finish", errStaleRun)
	}
	fn(o.run)
	o.transitionLocked(domain.StageDone)
	finished := o.now()
	o.run.FinishedAt = &finished
	snapshot := o.run.Snapshot()
	o.deps.Observer.RunFinished(snapshot)
	return snapshot, nil
}

func (o *PipelineOrchestrator) fail(gen uint64, failure *domain.Failure) (domain.PipelineRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation || o.run == nil {
		return domain.PipelineRun{}, domain.WrapError(domain.ErrNoRun, "pipeline fail", errStaleRun)
	}
	o.run.LastError = failure.Message
	o.transitionLocked(domain.StageError)
	o.run.Status = failure.Message
	finished := o.now()
	o.run.FinishedAt = &finished
	snapshot := o.run.Snapshot()
	o.deps.Observer.RunFinished(snapshot)
	o.deps.Logger.Warn("pipeline_failed", "run_id", snapshot.ID, "error", failure)
	return snapshot, failure
}

func (o *PipelineOrchestrator) stale() (domain.PipelineRun, error) {
	return domain.PipelineRun{}, domain.WrapError(domain.ErrNoRun, "pipeline run", errStaleRun)
}

// asFailure keeps the message of a typed failure and wraps anything else.
func asFailure(kind error, fallback string, err error) *domain.Failure {
	var failure *domain.Failure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewFailure(kind, msgCancelled, err)
	}
	if fallback == "" {
		fallback = err.Error()
	}
	return domain.NewFailure(kind, fallback, err)
}

func translatingStatus(targetLang string) string {
	return fmt.Sprintf("Translating explanation to %s…", LanguageName(targetLang))
}

func statusLine(stage domain.Stage, page, pages int) string {
	switch stage {
	case domain.StageClassifying:
		return "Reading your document…"
	case domain.StageNormalizing:
		return "Converting photo…"
	case domain.StageExtracting:
		if pages > 1 && page > 0 {
			return fmt.Sprintf("Running OCR (page %d of %d)…", page, pages)
		}
		return "Running OCR…"
	case domain.StageInterpreting:
		return "Interpreting…"
	case domain.StageDone:
		return "Done."
	default:
		return ""
	}
}

type noopObserver struct{}

func (noopObserver) StageChanged(string, domain.Stage, domain.Stage, time.Duration) {}
func (noopObserver) FileRejected(string)                                            {}
func (noopObserver) ClarificationPresented(domain.ClarificationMode, int)           {}
func (noopObserver) RunFinished(domain.PipelineRun)                                 {}
