package agent

import "github.com/cloudwego/eino/schema"

// State is the per-turn conversation state held as eino graph local state. It is
// created fresh for every graph run and only touched inside state handlers or
// compose.ProcessState, which serialize access to it.
type State struct {
	Messages   []*schema.Message
	ToolRounds int
	Err        error
}

func (s *State) append(msgs ...*schema.Message) {
	s.Messages = append(s.Messages, msgs...)
}

// snapshot copies the message slice so callers can't alias the state.
func (s *State) snapshot() []*schema.Message {
	out := make([]*schema.Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Turn is the outcome of one graph run.
type Turn struct {
	Answer     string
	Messages   []*schema.Message
	ToolRounds int
	Err        error
}
