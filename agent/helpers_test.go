package agent

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sirupsen/logrus"

	"github.com/olusolaa/searchchat/foundation/search"
	"github.com/olusolaa/searchchat/foundation/tools"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeModel answers each Generate call with respond(call index, input).
type fakeModel struct {
	mu      sync.Mutex
	respond func(call int, in []*schema.Message) (*schema.Message, error)
	inputs  [][]*schema.Message
	tools   []*schema.ToolInfo
}

func scripted(replies ...*schema.Message) *fakeModel {
	return &fakeModel{respond: func(call int, _ []*schema.Message) (*schema.Message, error) {
		if call >= len(replies) {
			return nil, errors.New("no scripted reply")
		}
		return replies[call], nil
	}}
}

func (f *fakeModel) Generate(ctx context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	call := len(f.inputs)
	f.inputs = append(f.inputs, slices.Clone(in))
	f.mu.Unlock()
	return f.respond(call, in)
}

func (f *fakeModel) Stream(context.Context, []*schema.Message, ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (f *fakeModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	f.tools = infos
	return f, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

// stubSearcher returns canned results and records the queries it ran.
type stubSearcher struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	queries []string
}

func (s *stubSearcher) Name() string { return "stub" }

func (s *stubSearcher) Search(_ context.Context, query string, limit int) ([]search.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > limit {
		return s.results[:limit], nil
	}
	return s.results, nil
}

func newTestDispatcher(t *testing.T, s search.Searcher) *Dispatcher {
	t.Helper()
	searchTool, err := tools.NewSearchTool(s, 2)
	if err != nil {
		t.Fatalf("failed to create search tool: %v", err)
	}
	d, err := NewDispatcher(context.Background(), quietLogger(), searchTool)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	return d
}

func newTestConversation(t *testing.T, m model.ToolCallingChatModel, s search.Searcher, rounds int, systemPrompt string) *Conversation {
	t.Helper()
	conv, err := NewConversation(context.Background(), ConversationConfig{
		Model:         m,
		Dispatcher:    newTestDispatcher(t, s),
		MaxToolRounds: rounds,
		SystemPrompt:  systemPrompt,
		Log:           quietLogger(),
	})
	if err != nil {
		t.Fatalf("failed to build conversation: %v", err)
	}
	return conv
}

func searchCall(id, args string) schema.ToolCall {
	return schema.ToolCall{
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: tools.SearchToolName, Arguments: args},
	}
}

func toolRequest(calls ...schema.ToolCall) *schema.Message {
	return schema.AssistantMessage("", calls)
}

func roles(msgs []*schema.Message) []schema.RoleType {
	out := make([]schema.RoleType, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Role)
	}
	return out
}
