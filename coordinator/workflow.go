package coordinator

import (
	"github.com/shortlink-org/bank-saga/cqrs/message"
)

// State accumulates what a workflow learned so far: its input and the
// success payload of every completed step.
type State struct {
	Input         message.Payload
	Results       map[string]message.Payload
	CorrelationID string
}

func newState(correlationID string, input message.Payload) *State {
	return &State{
		Input:         input,
		Results:       map[string]message.Payload{},
		CorrelationID: correlationID,
	}
}

// Result returns the success payload of step, empty when the step did not succeed.
func (s *State) Result(step string) message.Payload {
	if p, ok := s.Results[step]; ok {
		return p
	}

	return message.Payload{}
}

// PayloadFunc builds a command payload from the state.
type PayloadFunc func(s *State) message.Payload

// StepDef is one step of a workflow: a command, its optional compensation, and
// whether its failure only degrades the result.
type StepDef struct {
	Build             PayloadFunc
	BuildCompensation PayloadFunc
	Name              string
	Command           string
	Compensation      string
	Degradable        bool
}

// Workflow is a linear chain of steps.
type Workflow struct {
	// Output builds the Detail of a successful Result.
	Output func(s *State) any
	Kind   string
	Steps  []StepDef
}

// Commands returns the commands, including compensations, the workflow can issue.
func (w Workflow) Commands() []string {
	out := make([]string, 0, len(w.Steps))
	for _, step := range w.Steps {
		out = append(out, step.Command)
		if step.Compensation != "" {
			out = append(out, step.Compensation)
		}
	}

	return out
}
