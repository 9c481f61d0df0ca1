package scan

import (
	"strings"
	"sync"

	"github.com/AMEND09/ID-Scanner/internal/errors"
)

// PromptState is the state of the missing-fields prompt.
type PromptState int

const (
	PromptIdle PromptState = iota
	PromptAwaitingInput
	PromptSubmitted
	PromptCancelled
)

func (s PromptState) String() string {
	switch s {
	case PromptIdle:
		return "idle"
	case PromptAwaitingInput:
		return "awaiting_input"
	case PromptSubmitted:
		return "submitted"
	case PromptCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	ErrPromptBusy   = errors.NewStd("a prompt is already awaiting input")
	ErrNoPrompt     = errors.NewStd("no prompt is awaiting input")
	ErrNameRequired = errors.NewStd("full name is required")
)

// Pauser is implemented by decode sources that must stop while a prompt is open.
type Pauser interface {
	Pause()
	Resume()
}

// PromptFlow asks for name and grade after a bare ID was scanned.
//
// Idle -> AwaitingInput on Begin; AwaitingInput -> Submitted or Cancelled -> Idle.
// Pausing and resuming the decode sources happen inside those transitions.
type PromptFlow struct {
	mu        sync.Mutex
	state     PromptState
	pendingID string
	pauser    Pauser
	last      PromptState
}

// NewPromptFlow returns an idle prompt flow. pauser may be nil.
func NewPromptFlow(pauser Pauser) *PromptFlow {
	return &PromptFlow{pauser: pauser}
}

// Begin opens the prompt for id and pauses decoding. It returns ErrPromptBusy while
// another prompt is open; the detection is then ignored.
func (f *PromptFlow) Begin(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != PromptIdle {
		return ErrPromptBusy
	}

	f.state = PromptAwaitingInput
	f.pendingID = id
	if f.pauser != nil {
		f.pauser.Pause()
	}
	return nil
}

// Submit completes the prompt. The name is split at its first whitespace into first and
// last name. An empty name keeps the prompt open and returns ErrNameRequired.
func (f *PromptFlow) Submit(fullName, grade string) (Structured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != PromptAwaitingInput {
		return Structured{}, ErrNoPrompt
	}

	name := collapseSpaces(fullName)
	if name == "" {
		return Structured{}, ErrNameRequired
	}
	first, last, _ := strings.Cut(name, " ")

	payload := NewStructured(Fields{
		ID:        f.pendingID,
		FirstName: first,
		LastName:  last,
		Grade:     grade,
	})

	f.finishLocked(PromptSubmitted)
	return payload, nil
}

// Cancel discards the pending detection and resumes decoding.
func (f *PromptFlow) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != PromptAwaitingInput {
		return ErrNoPrompt
	}
	f.finishLocked(PromptCancelled)
	return nil
}

// finishLocked passes through the terminal state back to Idle.
func (f *PromptFlow) finishLocked(terminal PromptState) {
	f.state = terminal
	f.last = terminal
	f.pendingID = ""
	if f.pauser != nil {
		f.pauser.Resume()
	}
	f.state = PromptIdle
}

// State returns the current state.
func (f *PromptFlow) State() PromptState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Pending returns the ID awaiting input, if any.
func (f *PromptFlow) Pending() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pendingID, f.state == PromptAwaitingInput
}

// LastOutcome returns how the most recent prompt ended, PromptIdle if none has.
func (f *PromptFlow) LastOutcome() PromptState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}
