package domain

import "time"

type Stage string

const (
	StageIdle         Stage = "idle"
	StageClassifying  Stage = "classifying"
	StageNormalizing  Stage = "normalizing"
	StageExtracting   Stage = "extracting"
	StageInterpreting Stage = "interpreting"
	StageDone         Stage = "done"
	StageError        Stage = "error"
)

// Busy reports whether a run in this stage blocks a new submission.
func (s Stage) Busy() bool {
	return s != StageIdle && s != StageDone && s != StageError
}

// Submission is one user request to process a set of pages.
type Submission struct {
	Files      []SubmittedFile
	TargetLang string
	UILang     string
	ClientID   string
}

// PipelineRun is the state of one submission. Degraded marks a finished run
// whose interpretation failed after text had already been extracted.
type PipelineRun struct {
	ID            string                `json:"id"`
	Stage         Stage                 `json:"stage"`
	Status        string                `json:"status"`
	TargetLang    string                `json:"target_lang"`
	UILang        string                `json:"ui_lang"`
	Page          int                   `json:"page,omitempty"`
	PageCount     int                   `json:"page_count"`
	Text          string                `json:"text,omitempty"`
	Fields        Fields                `json:"fields,omitempty"`
	Result        *InterpretationResult `json:"result,omitempty"`
	Degraded      bool                  `json:"degraded,omitempty"`
	Clarifying    bool                  `json:"clarifying,omitempty"`
	Clarification *Clarification        `json:"clarification,omitempty"`
	LastError     string                `json:"last_error,omitempty"`
	SourceFiles   []SourceFile          `json:"source_files"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    *time.Time            `json:"finished_at,omitempty"`
}

// Snapshot returns a copy that does not share mutable state with r.
func (r PipelineRun) Snapshot() PipelineRun {
	out := r
	if r.Fields != nil {
		out.Fields = make(Fields, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	out.SourceFiles = append([]SourceFile(nil), r.SourceFiles...)
	if r.Result != nil {
		res := *r.Result
		out.Result = &res
	}
	if r.Clarification != nil {
		c := *r.Clarification
		out.Clarification = &c
	}
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
