package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/filetypes"
)

type fakeNormalizer struct {
	calls int
}

func (f *fakeNormalizer) Normalize(_ context.Context, file domain.ClassifiedFile) (domain.ClassifiedFile, error) {
	f.calls++
	file.File.Name = strings.TrimSuffix(file.File.Name, ".heic") + ".jpg"
	file.File.DeclaredMIME = "image/jpeg"
	file.Kind = domain.KindJPEG
	file.NeedsNormalization = false
	return file, nil
}

type fakeExtractor struct {
	mu    sync.Mutex
	texts []string
	errs  []error
	seen  []domain.ClassifiedFile
}

func (f *fakeExtractor) Extract(_ context.Context, file domain.ClassifiedFile) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := len(f.seen)
	f.seen = append(f.seen, file)
	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}
	if idx < len(f.texts) {
		return f.texts[idx], nil
	}
	return "", nil
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type blockingExtractor struct {
	started chan struct{}
	once    sync.Once
}

func (b *blockingExtractor) Extract(ctx context.Context, _ domain.ClassifiedFile) (string, error) {
	b.once.Do(func() { close(b.started) })
	<-ctx.Done()
	return "late text", ctx.Err()
}

type fakeInterpreter struct {
	mu     sync.Mutex
	result domain.InterpretationResult
	err    error
	texts  []string
}

func (f *fakeInterpreter) Interpret(_ context.Context, text, targetLang, _ string) (domain.InterpretationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return domain.InterpretationResult{}, f.err
	}
	res := f.result
	res.TargetLang = targetLang
	return res, nil
}

func (f *fakeInterpreter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

type recordingObserver struct {
	mu       sync.Mutex
	stages   []domain.Stage
	rejected []string
	finished []domain.PipelineRun
}

func (r *recordingObserver) StageChanged(_ string, _, to domain.Stage, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, to)
}

func (r *recordingObserver) FileRejected(ext string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, ext)
}

func (r *recordingObserver) ClarificationPresented(domain.ClarificationMode, int) {}

func (r *recordingObserver) RunFinished(run domain.PipelineRun) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, run)
}

type plainTextReader struct{}

func (plainTextReader) Extract(_ context.Context, file domain.ClassifiedFile) (string, error) {
	return string(file.File.Data), nil
}

type fakeUsageStore struct {
	count      int
	increments int
}

func (f *fakeUsageStore) Count(context.Context, string) (int, error) { return f.count, nil }

func (f *fakeUsageStore) Increment(context.Context, string) (int, error) {
	f.increments++
	f.count++
	return f.count, nil
}

type orchestratorFixture struct {
	orchestrator *PipelineOrchestrator
	normalizer   *fakeNormalizer
	extractor    *fakeExtractor
	interpreter  *fakeInterpreter
	observer     *recordingObserver
}

func newOrchestratorFixture(t *testing.T, mutate func(*PipelineDeps)) orchestratorFixture {
	t.Helper()
	f := orchestratorFixture{
		normalizer:  &fakeNormalizer{},
		extractor:   &fakeExtractor{},
		interpreter: &fakeInterpreter{},
		observer:    &recordingObserver{},
	}
	deps := PipelineDeps{
		Classifier:  NewFileClassifier(filetypes.MustDefault()),
		Normalizer:  f.normalizer,
		TextReader:  plainTextReader{},
		Extractor:   f.extractor,
		Interpreter: f.interpreter,
		Observer:    f.observer,
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.orchestrator = NewPipelineOrchestrator(deps, PipelineOptions{DefaultTargetLang: "es"})
	return f
}

func TestRunHEICPhotoReachesDoneWithoutClarification(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"Total Due $120.00, due Jan 5"}
	f.interpreter.result = domain.InterpretationResult{
		Summary: "You owe $120 by Jan 5",
		Fields: domain.Fields{
			domain.FieldAmountDue: {Value: "120.00"},
			domain.FieldDueDate:   {Value: "Jan 5"},
		},
	}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "IMG_1.heic", Data: []byte("heic bytes")}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Stage != domain.StageDone || run.Clarifying || run.Clarification != nil {
		t.Fatalf("unexpected run state %+v", run)
	}
	if f.normalizer.calls != 1 {
		t.Fatalf("normalizer calls = %d, want 1", f.normalizer.calls)
	}
	if got := f.extractor.seen[0].Kind; got != domain.KindJPEG {
		t.Fatalf("extractor received kind %q, want jpeg", got)
	}
	if run.Result == nil || run.Result.Summary != "You owe $120 by Jan 5" {
		t.Fatalf("unexpected result %+v", run.Result)
	}
	if run.Fields[domain.FieldAmountDue].Value != "120.00" {
		t.Fatalf("unexpected fields %+v", run.Fields)
	}

	want := []domain.Stage{
		domain.StageClassifying,
		domain.StageNormalizing,
		domain.StageExtracting,
		domain.StageInterpreting,
		domain.StageDone,
	}
	if strings.Join(stageNames(f.observer.stages), ",") != strings.Join(stageNames(want), ",") {
		t.Fatalf("stages = %v, want %v", f.observer.stages, want)
	}
	if f.orchestrator.Busy() {
		t.Fatalf("orchestrator must not be busy after DONE")
	}
}

func TestRunDegradesWhenInterpretationFails(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"some bill text"}
	f.interpreter.err = domain.NewFailure(domain.ErrInterpretationFailed, "Internal Server Error", nil)

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "bill.pdf", Data: []byte("%PDF-1.4")}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Stage != domain.StageDone || !run.Degraded {
		t.Fatalf("expected degraded DONE, got stage=%q degraded=%v", run.Stage, run.Degraded)
	}
	if run.Text != "some bill text" {
		t.Fatalf("raw text = %q", run.Text)
	}
	if run.Result != nil {
		t.Fatalf("summary must be empty on degraded success, got %+v", run.Result)
	}
	if !strings.Contains(run.LastError, "Internal Server Error") {
		t.Fatalf("last error should carry service message, got %q", run.LastError)
	}
}

type panickingInterpreter struct{}

func (panickingInterpreter) Interpret(context.Context, string, string, string) (domain.InterpretationResult, error) {
	panic("nil map in response handling")
}

func TestRunPanicDuringInterpretationIsInterpretationFailure(t *testing.T) {
	f := newOrchestratorFixture(t, func(d *PipelineDeps) { d.Interpreter = panickingInterpreter{} })
	f.extractor.texts = []string{"some bill text"}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "bill.pdf", Data: []byte("%PDF-1.4")}},
	})
	if !domain.IsKind(err, domain.ErrInterpretationFailed) {
		t.Fatalf("expected ErrInterpretationFailed, got %v", err)
	}
	if domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("panic while interpreting must not be reported as extraction failure: %v", err)
	}
	if run.Stage != domain.StageError {
		t.Fatalf("stage = %q, want error", run.Stage)
	}
}

func TestRunRejectsUnsupportedFileBeforeNetwork(t *testing.T) {
	f := newOrchestratorFixture(t, nil)

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "setup.exe", DeclaredMIME: "image/png", Data: []byte("MZ")}},
	})
	if !domain.IsKind(err, domain.ErrRejectedInput) {
		t.Fatalf("expected ErrRejectedInput, got %v", err)
	}
	if run.Stage != domain.StageError || run.LastError != domain.MsgUnsupportedFile {
		t.Fatalf("unexpected run %+v", run)
	}
	if f.extractor.calls() != 0 || f.interpreter.calls() != 0 {
		t.Fatalf("no remote call may be made for a rejected file")
	}
	if len(f.observer.rejected) != 1 || f.observer.rejected[0] != "exe" {
		t.Fatalf("rejection not observed: %v", f.observer.rejected)
	}
}

func TestRunRejectsWholeBatchBeforeAnyExtraction(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"page one"}

	_, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{
			{Name: "page1.jpg", Data: []byte("jpg")},
			{Name: "page2.zip", Data: []byte("zip")},
		},
	})
	if !domain.IsKind(err, domain.ErrRejectedInput) {
		t.Fatalf("expected ErrRejectedInput, got %v", err)
	}
	if f.extractor.calls() != 0 {
		t.Fatalf("extractor calls = %d, want 0", f.extractor.calls())
	}
}

func TestRunKeepsEarlierPagesWhenLaterPageFails(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"page one text"}
	f.extractor.errs = []error{nil, domain.NewFailure(domain.ErrExtractionFailed, domain.MsgOCRTimeout, nil)}
	f.interpreter.result = domain.InterpretationResult{Summary: "ok"}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{
			{Name: "p1.jpg", Data: []byte("1")},
			{Name: "p2.jpg", Data: []byte("2")},
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Stage != domain.StageDone {
		t.Fatalf("stage = %q, want done", run.Stage)
	}
	if len(f.interpreter.texts) != 1 || f.interpreter.texts[0] != "page one text" {
		t.Fatalf("interpreter should receive page one text, got %q", f.interpreter.texts)
	}
	if !strings.Contains(run.LastError, "Page 2") || !strings.Contains(run.LastError, domain.MsgOCRTimeout) {
		t.Fatalf("last error = %q", run.LastError)
	}
}

func TestRunJoinsPagesWithPageBreak(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"first", "second"}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{
			{Name: "p1.png", Data: []byte("1")},
			{Name: "p2.png", Data: []byte("2")},
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Text != "first"+DefaultPageBreak+"second" {
		t.Fatalf("text = %q", run.Text)
	}
	if len(run.SourceFiles) != 2 || run.SourceFiles[1].Kind != domain.KindPNG {
		t.Fatalf("source files = %+v", run.SourceFiles)
	}
}

func TestRunFailsOnEmptyExtraction(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"   \n"}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "blank.jpg", Data: []byte("x")}},
	})
	if !domain.IsKind(err, domain.ErrExtractionFailed) {
		t.Fatalf("expected ErrExtractionFailed, got %v", err)
	}
	if run.Stage != domain.StageError || run.LastError != domain.MsgEmptyOCR {
		t.Fatalf("unexpected run %+v", run)
	}
	if f.interpreter.calls() != 0 {
		t.Fatalf("interpreter must not be called without text")
	}
}

func TestRunReadsPlainTextWithoutOCR(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.interpreter.result = domain.InterpretationResult{Summary: "text summary"}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "letter.txt", Data: []byte("Please pay $10")}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if f.extractor.calls() != 0 {
		t.Fatalf("OCR must be skipped for plain text")
	}
	if run.Text != "Please pay $10" {
		t.Fatalf("text = %q", run.Text)
	}
}

func TestRunEntersClarifyingOverlay(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	f.extractor.texts = []string{"late charge"}
	f.interpreter.result = domain.InterpretationResult{
		Summary:        "summary",
		Clarifications: twoAmbiguityItems(),
	}

	run, err := f.orchestrator.Run(context.Background(), domain.Submission{
		Files: []domain.SubmittedFile{{Name: "bill.jpg", Data: []byte("x")}},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Stage != domain.StageDone || !run.Clarifying {
		t.Fatalf("expected DONE with clarifying overlay, got %+v", run)
	}
	if run.Clarification == nil || len(run.Clarification.Prompts) != 2 {
		t.Fatalf("expected two prompts, got %+v", run.Clarification)
	}
}

func TestSecondSubmissionWhileBusyIsIgnoredAndClearDiscardsRun(t *testing.T) {
	blocking := &blockingExtractor{started: make(chan struct{})}
	f := newOrchestratorFixture(t, func(deps *PipelineDeps) { deps.Extractor = blocking })

	sub := domain.Submission{Files: []domain.SubmittedFile{{Name: "bill.pdf", Data: []byte("%PDF")}}}
	runID, err := f.orchestrator.Start(context.Background(), sub)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	select {
	case <-blocking.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("extraction did not start")
	}

	if !f.orchestrator.Busy() {
		t.Fatalf("expected busy while extracting")
	}
	current, ok := f.orchestrator.Current()
	if !ok || current.ID != runID || current.Stage != domain.StageExtracting {
		t.Fatalf("unexpected current run %+v", current)
	}
	if _, err := f.orchestrator.Run(context.Background(), sub); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	f.orchestrator.Clear()
	time.Sleep(20 * time.Millisecond)

	if _, ok := f.orchestrator.Current(); ok {
		t.Fatalf("cleared run must not be resurrected by a late result")
	}
	if f.interpreter.calls() != 0 {
		t.Fatalf("interpreter must not run for a cleared run")
	}
	if f.orchestrator.Busy() {
		t.Fatalf("orchestrator must be idle after Clear")
	}
}

func TestRunRejectsEmptySubmission(t *testing.T) {
	f := newOrchestratorFixture(t, nil)
	if _, err := f.orchestrator.Run(context.Background(), domain.Submission{}); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPipelineGateBlocksAfterFreeRuns(t *testing.T) {
	store := &fakeUsageStore{count: 2}
	f := newOrchestratorFixture(t, func(deps *PipelineDeps) {
		deps.Usage = NewUsageGate(store, 3, nil)
	})
	f.extractor.texts = []string{"text", "text"}
	f.interpreter.result = domain.InterpretationResult{Summary: "ok"}
	sub := domain.Submission{
		ClientID: "client-1",
		Files:    []domain.SubmittedFile{{Name: "bill.png", Data: []byte("x")}},
	}

	if _, err := f.orchestrator.Run(context.Background(), sub); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if store.increments != 1 {
		t.Fatalf("increments = %d, want 1", store.increments)
	}

	_, err := f.orchestrator.Run(context.Background(), sub)
	if !domain.IsKind(err, domain.ErrUsageExhausted) {
		t.Fatalf("expected ErrUsageExhausted, got %v", err)
	}
	if domain.UserMessage(err) != domain.MsgUsageExhausted {
		t.Fatalf("unexpected message %q", domain.UserMessage(err))
	}
}

func stageNames(stages []domain.Stage) []string {
	out := make([]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, string(s))
	}
	return out
}
