package batch

import (
	"fmt"
	"time"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
)

// Terminal reports whether no more work happens in this state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCanceled
}

type EventType string

const (
	EventStarted    EventType = "started"
	EventProgress   EventType = "progress"
	EventMatched    EventType = "matched"
	EventMotivation EventType = "motivation"
	EventError      EventType = "error"
	EventPaused     EventType = "paused"
	EventResumed    EventType = "resumed"
	EventCompleted  EventType = "completed"
	EventCanceled   EventType = "canceled"
)

// Stage names the step of a job an error happened in.
type Stage string

const (
	StageMatch    Stage = "match"
	StagePersist  Stage = "persist"
	StageGenerate Stage = "generate"
)

type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	// Index is the 1-based position of the job in the batch.
	Index int `json:"index,omitempty"`
	Total int `json:"total"`

	JobID    string `json:"job_id,omitempty"`
	Position string `json:"position,omitempty"`
	Company  string `json:"company,omitempty"`

	Candidates []string `json:"candidates,omitempty"`
	Candidate  string   `json:"candidate,omitempty"`
	// Dropped counts names returned by the backend that were not matched.
	Dropped int `json:"dropped,omitempty"`

	Stage   Stage  `json:"stage,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`

	Summary *Summary `json:"summary,omitempty"`
}

// Summary is attached to the terminal event.
type Summary struct {
	Jobs        int `json:"jobs"`
	Processed   int `json:"processed"`
	Failed      int `json:"failed"`
	Matches     int `json:"matches"`
	Motivations int `json:"motivations"`
}

// AlreadyRunningError is returned by Start while a batch is in progress.
type AlreadyRunningError struct {
	State State
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("batch is already %s", e.State)
}
