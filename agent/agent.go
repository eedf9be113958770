package agent

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/olusolaa/searchchat/ui"
)

// Options tunes the interactive loop.
type Options struct {
	TurnTimeout time.Duration
	// Remember carries each successful turn's question and answer into the next turn.
	Remember bool
}

// Agent runs the interactive loop. It is decoupled from the UI, which is provided as
// a dependency.
type Agent struct {
	conv    *Conversation
	ui      *ui.TerminalUI
	log     logrus.FieldLogger
	opts    Options
	history []*schema.Message
}

// New creates an Agent.
func New(conv *Conversation, terminal *ui.TerminalUI, log logrus.FieldLogger, opts Options) *Agent {
	return &Agent{conv: conv, ui: terminal, log: log, opts: opts}
}

// IsExitCommand reports whether input asks to end the session.
func IsExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// Run starts the main interactive loop. It returns nil on an exit command, end of
// input, or cancellation of ctx.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.ui.DisplayWelcome()
	lines := a.ui.ReadLines(ctx)

	for {
		a.ui.DisplayUserPrompt()

		var (
			input string
			ok    bool
		)
		select {
		case <-ctx.Done():
			a.ui.DisplayGoodbye()
			return nil
		case input, ok = <-lines:
			if !ok {
				a.ui.DisplayGoodbye()
				return nil
			}
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if IsExitCommand(input) {
			a.ui.DisplayGoodbye()
			return nil
		}

		a.executeTurn(ctx, input)
		if ctx.Err() != nil {
			a.ui.DisplayGoodbye()
			return nil
		}
	}
}

// executeTurn runs one question through the graph and prints the answer.
func (a *Agent) executeTurn(ctx context.Context, input string) {
	log := a.log.WithField("turn_id", uuid.NewString())

	if a.opts.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.TurnTimeout)
		defer cancel()
	}

	msgs := append(slices.Clone(a.history), schema.UserMessage(input))
	started := time.Now()

	turn, err := a.conv.Run(ctx, msgs, compose.WithCallbacks(a.ui.Build(NodeTools)))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug("turn interrupted")
			return
		}
		log.WithField("category", Category(err)).Errorf("turn failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			a.ui.DisplayAnswer(Apology(err))
			return
		}
		a.ui.DisplayError(err)
		return
	}

	fields := logrus.Fields{"rounds": turn.ToolRounds, "elapsed": time.Since(started).Round(time.Millisecond)}
	if turn.Err != nil {
		fields["category"] = Category(turn.Err)
		log.WithFields(fields).Warnf("turn ended with apology: %v", turn.Err)
	} else {
		log.WithFields(fields).Debug("turn complete")
	}

	a.ui.DisplayAnswer(turn.Answer)

	if a.opts.Remember && turn.Err == nil {
		a.history = append(a.history, schema.UserMessage(input), schema.AssistantMessage(turn.Answer, nil))
	}
}
