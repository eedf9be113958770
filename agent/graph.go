package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"
)

// Graph node keys. They double as node names in callback RunInfo.
const (
	NodeInput     = "input"
	NodePrompt    = "prompt"
	NodeChatModel = "chat_model"
	NodeTools     = "tools"
	NodeFinish    = "finish"
)

const graphName = "SearchChat"

// ConversationConfig wires the graph's components. A nil Dispatcher builds a plain
// chatbot: no tools are bound and the tools node is left out.
type ConversationConfig struct {
	Model         model.ToolCallingChatModel
	Dispatcher    *Dispatcher
	MaxToolRounds int
	// SystemPrompt is an FString template; {date} expands to the current date.
	SystemPrompt string
	Log          logrus.FieldLogger
}

// Conversation is the compiled model/tools graph. One Run is one turn.
type Conversation struct {
	runnable compose.Runnable[[]*schema.Message, *Turn]
}

// NewConversation binds the dispatcher's tools to the model and compiles the graph:
//
//	START -> input -> prompt -> chat_model -> (tools -> chat_model)* -> finish -> END
func NewConversation(ctx context.Context, cfg ConversationConfig) (*Conversation, error) {
	if cfg.Model == nil {
		return nil, errors.New("chat model cannot be nil")
	}
	if cfg.MaxToolRounds <= 0 {
		return nil, fmt.Errorf("max tool rounds must be positive, got %d", cfg.MaxToolRounds)
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	chatTemplate := createChatTemplate(cfg.SystemPrompt)
	if _, err := chatTemplate.Format(ctx, templateVariables(nil)); err != nil {
		return nil, fmt.Errorf("invalid system prompt: %w", err)
	}

	chatModel, toolRounds := cfg.Model, 0
	if cfg.Dispatcher != nil {
		bound, err := cfg.Model.WithTools(cfg.Dispatcher.Infos())
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
		chatModel, toolRounds = bound, cfg.MaxToolRounds
	}

	g := compose.NewGraph[[]*schema.Message, *Turn](
		compose.WithGenLocalState(func(context.Context) *State { return &State{} }),
	)

	if err := g.AddLambdaNode(NodeInput, compose.InvokableLambda(toTemplateInput), compose.WithNodeName(NodeInput)); err != nil {
		return nil, fmt.Errorf("failed to add %s node: %w", NodeInput, err)
	}
	if err := g.AddChatTemplateNode(NodePrompt, chatTemplate, compose.WithNodeName(NodePrompt)); err != nil {
		return nil, fmt.Errorf("failed to add %s node: %w", NodePrompt, err)
	}

	err := g.AddLambdaNode(NodeChatModel,
		compose.InvokableLambda(callModel(chatModel, cfg.Log)),
		compose.WithStatePreHandler(appendInput),
		compose.WithStatePostHandler(capToolRounds(toolRounds, cfg.Log)),
		compose.WithNodeName(NodeChatModel),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add %s node: %w", NodeChatModel, err)
	}

	err = g.AddLambdaNode(NodeFinish,
		compose.InvokableLambda(finish),
		compose.WithNodeName(NodeFinish),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add %s node: %w", NodeFinish, err)
	}

	if err := g.AddEdge(compose.START, NodeInput); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeInput, NodePrompt); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodePrompt, NodeChatModel); err != nil {
		return nil, err
	}
	if err := g.AddEdge(NodeFinish, compose.END); err != nil {
		return nil, err
	}

	if cfg.Dispatcher == nil {
		if err := g.AddEdge(NodeChatModel, NodeFinish); err != nil {
			return nil, err
		}
	} else {
		err = g.AddLambdaNode(NodeTools,
			compose.InvokableLambda(runTools(cfg.Dispatcher, cfg.Log)),
			compose.WithStatePreHandler(countRound),
			compose.WithNodeName(NodeTools),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s node: %w", NodeTools, err)
		}

		branch := compose.NewGraphBranch(route, map[string]bool{NodeTools: true, NodeFinish: true})
		if err := g.AddBranch(NodeChatModel, branch); err != nil {
			return nil, err
		}
		if err := g.AddEdge(NodeTools, NodeChatModel); err != nil {
			return nil, err
		}
	}

	// input and prompt, then a model step plus a tools step per round, then the
	// last model step and finish.
	runnable, err := g.Compile(ctx,
		compose.WithGraphName(graphName),
		compose.WithMaxRunSteps(2*cfg.MaxToolRounds+6),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile graph: %w", err)
	}

	return &Conversation{runnable: runnable}, nil
}

// Run executes one turn starting from msgs. Model and tool failures are reported on
// Turn.Err alongside an apology answer; the returned error is reserved for
// cancellation and graph faults.
func (c *Conversation) Run(ctx context.Context, msgs []*schema.Message, opts ...compose.Option) (*Turn, error) {
	turn, err := c.runnable.Invoke(ctx, msgs, opts...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to run conversation graph: %w", err)
	}
	return turn, nil
}

// createChatTemplate puts the optional system prompt ahead of the turn's messages.
func createChatTemplate(systemPrompt string) prompt.ChatTemplate {
	var templates []schema.MessagesTemplate
	if systemPrompt != "" {
		templates = append(templates, schema.SystemMessage(systemPrompt))
	}
	templates = append(templates, schema.MessagesPlaceholder("history", false))
	return prompt.FromMessages(schema.FString, templates...)
}

func templateVariables(history []*schema.Message) map[string]any {
	if history == nil {
		history = []*schema.Message{}
	}
	return map[string]any{
		"history": history,
		"date":    time.Now().Format("2006-01-02"),
	}
}

func toTemplateInput(_ context.Context, msgs []*schema.Message) (map[string]any, error) {
	return templateVariables(msgs), nil
}

func appendInput(_ context.Context, in []*schema.Message, s *State) ([]*schema.Message, error) {
	s.append(in...)
	return s.snapshot(), nil
}

func countRound(_ context.Context, in Response, s *State) (Response, error) {
	s.ToolRounds++
	return in, nil
}

func callModel(chatModel model.ToolCallingChatModel, log logrus.FieldLogger) func(context.Context, []*schema.Message) (Response, error) {
	return func(ctx context.Context, history []*schema.Message) (Response, error) {
		var prior error
		if err := compose.ProcessState(ctx, func(_ context.Context, s *State) error {
			prior = s.Err
			return nil
		}); err != nil {
			return nil, err
		}
		// A failed tools round ends the turn without asking the model again.
		if prior != nil {
			return Final{Message: schema.AssistantMessage(Apology(prior), nil)}, nil
		}

		reply, err := chatModel.Generate(ctx, history)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			err = fmt.Errorf("%w: %w", ErrModel, err)
			log.WithField("category", Category(err)).Errorf("model call failed: %v", err)
			if perr := fail(ctx, err); perr != nil {
				return nil, perr
			}
			return Final{Message: schema.AssistantMessage(Apology(err), nil)}, nil
		}
		return NewResponse(reply), nil
	}
}

func capToolRounds(limit int, log logrus.FieldLogger) func(context.Context, Response, *State) (Response, error) {
	return func(_ context.Context, out Response, s *State) (Response, error) {
		if _, ok := out.(ToolRequest); ok && s.ToolRounds >= limit {
			s.Err = fmt.Errorf("%w: limit is %d", ErrToolRoundsExceeded, limit)
			log.WithFields(logrus.Fields{"category": Category(s.Err), "rounds": s.ToolRounds}).Warn("dropping tool request")
			out = Final{Message: schema.AssistantMessage(Apology(s.Err), nil)}
		}
		s.append(out.Msg())
		return out, nil
	}
}

func runTools(d *Dispatcher, log logrus.FieldLogger) func(context.Context, Response) ([]*schema.Message, error) {
	return func(ctx context.Context, in Response) ([]*schema.Message, error) {
		req, ok := in.(ToolRequest)
		if !ok {
			return nil, fmt.Errorf("tools node received %T", in)
		}

		msgs, err := d.Dispatch(ctx, req.Calls)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.WithField("category", Category(err)).Errorf("tool round failed: %v", err)
			if perr := fail(ctx, err); perr != nil {
				return nil, perr
			}
			return nil, nil
		}
		return msgs, nil
	}
}

func route(_ context.Context, in Response) (string, error) {
	if _, ok := in.(ToolRequest); ok {
		return NodeTools, nil
	}
	return NodeFinish, nil
}

func finish(ctx context.Context, in Response) (*Turn, error) {
	turn := &Turn{Answer: in.Msg().Content}
	err := compose.ProcessState(ctx, func(_ context.Context, s *State) error {
		turn.Messages = s.snapshot()
		turn.ToolRounds = s.ToolRounds
		turn.Err = s.Err
		return nil
	})
	if err != nil {
		return nil, err
	}
	return turn, nil
}

func fail(ctx context.Context, err error) error {
	return compose.ProcessState(ctx, func(_ context.Context, s *State) error {
		s.Err = err
		return nil
	})
}
