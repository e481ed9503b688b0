package model

import "time"

// RunKind identifies what a run did.
type RunKind string

const (
	RunKindExtract  RunKind = "extract"
	RunKindEvaluate RunKind = "evaluate"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one extraction or evaluation invocation recorded in the store.
type Run struct {
	ID        string         `json:"id"`
	Kind      RunKind        `json:"kind"`
	Status    RunStatus      `json:"status"`
	Params    map[string]any `json:"params,omitempty"`
	Summary   *RunSummary    `json:"summary,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RunSummary holds the headline numbers of a finished run.
type RunSummary struct {
	Articles    int                `json:"articles"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Matched     int                `json:"matched"`
	TotalTokens int                `json:"total_tokens"`
	TotalCost   float64            `json:"total_cost"`
	DurationMs  int64              `json:"duration_ms"`
	Metrics     map[string]float64 `json:"metrics,omitempty"`
}

// Checkpoint is a snapshot of predictions completed so far in an extract run.
type Checkpoint struct {
	ID          string       `json:"id"`
	RunID       string       `json:"run_id"`
	Completed   int          `json:"completed"`
	Predictions []Prediction `json:"predictions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TokenUsage tracks token consumption across LLM calls.
type TokenUsage struct {
	InputTokens         int `json:"input_tokens"`
	OutputTokens        int `json:"output_tokens"`
	CacheCreationTokens int `json:"cache_creation_tokens"`
	CacheReadTokens     int `json:"cache_read_tokens"`
}

// Total returns every billed token, cached prompt tokens included.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// Add accumulates another usage into u.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}
