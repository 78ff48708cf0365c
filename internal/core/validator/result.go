package validator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/YourlocalJay/reddit-persona-validator/internal/core/scoring"
)

// Existence is the tri-state account existence signal. It starts unknown
// and is only upgraded by a successful or definitive extraction.
type Existence int

const (
	ExistenceUnknown Existence = iota
	ExistenceConfirmed
	ExistenceMissing
)

func (e Existence) String() string {
	switch e {
	case ExistenceConfirmed:
		return "confirmed"
	case ExistenceMissing:
		return "missing"
	default:
		return "unknown"
	}
}

func (e Existence) MarshalJSON() ([]byte, error) {
	return []byte(`"` + e.String() + `"`), nil
}

func (e *Existence) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "confirmed":
		*e = ExistenceConfirmed
	case "missing":
		*e = ExistenceMissing
	default:
		*e = ExistenceUnknown
	}
	return nil
}

// Stage names, in pipeline order.
const (
	StageProxy   = "proxy"
	StageExtract = "extract"
	StageEmail   = "email"
	StageAI      = "analysis"
	StageScore   = "score"
)

// StageStatus is the explicit per-stage outcome.
type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageRecord captures one stage's outcome, with the underlying cause when
// it failed. Records accumulate in pipeline order; a failed optional stage
// degrades the evidence instead of aborting the run.
type StageRecord struct {
	Stage  string      `json:"stage"`
	Status StageStatus `json:"status"`
	Error  string      `json:"error,omitempty"`
}

// AccountEvidence is what the extraction collaborator returns.
type AccountEvidence struct {
	Exists  bool
	AgeDays int
	Karma   int
}

// Analysis is what the AI collaborator returns.
type Analysis struct {
	Viability int      `json:"viability"`
	Tags      []string `json:"tags,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Evidence holds the partial results of one run. Every field defaults to
// absent; absence of one signal never blocks the others.
type Evidence struct {
	Existence     Existence     `json:"existence"`
	AgeDays       *int          `json:"age_days,omitempty"`
	Karma         *int          `json:"karma,omitempty"`
	EmailVerified *bool         `json:"email_verified,omitempty"`
	AI            *Analysis     `json:"ai,omitempty"`
	Stages        []StageRecord `json:"stages"`
}

func (ev *Evidence) ok(stage string) {
	ev.Stages = append(ev.Stages, StageRecord{Stage: stage, Status: StageOK})
}

func (ev *Evidence) skip(stage string) {
	ev.Stages = append(ev.Stages, StageRecord{Stage: stage, Status: StageSkipped})
}

func (ev *Evidence) fail(stage string, err error) {
	ev.Stages = append(ev.Stages, StageRecord{Stage: stage, Status: StageFailed, Error: err.Error()})
}

// Signals converts the evidence into the calculator's input.
func (ev *Evidence) Signals() scoring.Signals {
	sig := scoring.Signals{
		AgeDays:       ev.AgeDays,
		Karma:         ev.Karma,
		EmailVerified: ev.EmailVerified,
	}
	if ev.AI != nil {
		sig.AIScore = &ev.AI.Viability
	}
	return sig
}

// Errors lists the failed stages as "stage: cause" strings.
func (ev *Evidence) Errors() []string {
	var out []string
	for _, rec := range ev.Stages {
		if rec.Status == StageFailed {
			out = append(out, fmt.Sprintf("%s: %s", rec.Stage, rec.Error))
		}
	}
	return out
}

// Request describes one validation run. It is immutable once the run
// starts; the scoring config is a snapshot, not a shared reference.
type Request struct {
	AccountID    string
	Email        string
	CheckEmail   bool
	CheckContent bool
	Scoring      scoring.Config
}

// Result is the immutable output of one run.
type Result struct {
	RunID     string       `json:"run_id"`
	AccountID string       `json:"account_id"`
	Evidence  Evidence     `json:"evidence"`
	Score     int          `json:"score"`
	Tier      scoring.Tier `json:"tier"`
	Errors    []string     `json:"errors,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	ElapsedMS int64        `json:"elapsed_ms"`
}
