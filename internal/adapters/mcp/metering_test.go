package mcpadapter

import (
	"context"
	"testing"

	"github.com/kirillkom/mailbills-assistant/internal/core/domain"
	"github.com/kirillkom/mailbills-assistant/internal/core/usecase"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/filetypes"
	"github.com/kirillkom/mailbills-assistant/internal/infrastructure/repository/memory"
)

type summaryInterpreter struct{}

func (summaryInterpreter) Interpret(_ context.Context, text, targetLang, _ string) (domain.InterpretationResult, error) {
	return domain.InterpretationResult{Summary: "Summary of: " + text, TargetLang: targetLang}, nil
}

func TestInterpretTextIsNotMeteredByUsageGate(t *testing.T) {
	orchestrator := usecase.NewPipelineOrchestrator(usecase.PipelineDeps{
		Classifier:  usecase.NewFileClassifier(filetypes.MustDefault()),
		TextReader:  plaintext.NewExtractor(),
		Extractor:   plaintext.NewExtractor(),
		Interpreter: summaryInterpreter{},
		Usage:       usecase.NewUsageGate(memory.NewUsageRepository(), 1, nil),
	}, usecase.PipelineOptions{})
	srv := New(orchestrator, nil)

	for i := 0; i < 3; i++ {
		res, err := srv.interpretText(context.Background(), callRequest(map[string]any{"text": "Pay $10 by Friday"}))
		if err != nil {
			t.Fatalf("interpretText() call %d error = %v", i+1, err)
		}
		if res.IsError {
			t.Fatalf("call %d was refused: %q", i+1, resultText(t, res))
		}
	}
}
