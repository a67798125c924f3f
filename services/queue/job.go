package queue

import (
	"time"

	"github.com/sahilchouksey/module-enhancer/model"
)

// Job is one module waiting for, or undergoing, enhancement.
// Only the fields with json tags survive a restart.
type Job struct {
	ID                  string    `json:"id"`
	ModuleID            uint      `json:"moduleId"`
	Title               string    `json:"title"`
	Content             string    `json:"content"`
	SubjectID           uint      `json:"subjectId"`
	InstructionOverride string    `json:"instructionOverride,omitempty"`
	Timestamp           time.Time `json:"timestamp"`

	SubjectName    string `json:"-"`
	ProfessionName string `json:"-"`
	ModuleNumber   int    `json:"-"`

	// Recovered jobs get a channel nobody reads
	result chan Outcome
}

// EnqueueRequest carries everything a caller knows about a module when submitting it
type EnqueueRequest struct {
	ModuleID            uint   `validate:"required"`
	Title               string `validate:"required"`
	Content             string
	SubjectID           uint
	InstructionOverride string
	SubjectName         string
	ProfessionName      string
	ModuleNumber        int
}

// Result is what a completed job reports back to its submitter
type Result struct {
	Success bool          `json:"success"`
	Module  *model.Module `json:"module,omitempty"`
	Message string        `json:"message"`
	// Warning is set when the module was published without enhancement
	Warning string `json:"warning,omitempty"`
}

// Outcome is delivered exactly once per job
type Outcome struct {
	Result *Result
	Err    error
}

// StatusItem describes one pending job
type StatusItem struct {
	ID         string    `json:"id"`
	ModuleID   uint      `json:"moduleId"`
	Title      string    `json:"title"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

type Status struct {
	PendingCount     int          `json:"pendingCount"`
	InFlightCount    int          `json:"inFlightCount"`
	ConcurrencyLimit int          `json:"concurrencyLimit"`
	SoftLimit        int          `json:"softLimit,omitempty"`
	Items            []StatusItem `json:"items"`
}

// AtSoftLimit reports whether callers should stop submitting
func (s Status) AtSoftLimit() bool {
	return s.SoftLimit > 0 && s.PendingCount >= s.SoftLimit
}
