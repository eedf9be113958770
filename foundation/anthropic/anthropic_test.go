package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/olusolaa/searchchat/foundation/tools"
)

type capturedRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	System    []struct {
		Text string `json:"text"`
	} `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content []struct {
			Type      string          `json:"type"`
			Text      string          `json:"text"`
			ID        string          `json:"id"`
			Name      string          `json:"name"`
			Input     json.RawMessage `json:"input"`
			ToolUseID string          `json:"tool_use_id"`
		} `json:"content"`
	} `json:"messages"`
	Tools []struct {
		Name        string `json:"name"`
		InputSchema struct {
			Type       string         `json:"type"`
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		} `json:"input_schema"`
	} `json:"tools"`
}

func newTestModel(t *testing.T, respBody string, captured *capturedRequest) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "sk-ant-test" {
			t.Errorf("unexpected api key header %q", got)
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)

	m, err := NewChatModel(context.Background(), &Config{
		APIKey:  "sk-ant-test",
		BaseURL: srv.URL + "/",
		Model:   "claude-3-5-haiku-latest",
	})
	if err != nil {
		t.Fatalf("failed to create chat model: %v", err)
	}
	return m
}

const toolUseReply = `{
  "id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku-latest",
  "content": [
    {"type": "text", "text": "Let me look that up."},
    {"type": "tool_use", "id": "toolu_1", "name": "search_internet", "input": {"query": "langgraph"}}
  ],
  "stop_reason": "tool_use",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

func TestNewChatModel_MissingAPIKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), &Config{Model: "claude-3-5-haiku-latest"})
	if err == nil {
		t.Fatal("expected error when api key is missing, got nil")
	}
	expectedMsg := "ANTHROPIC_API_KEY environment variable is required"
	if err.Error() != expectedMsg {
		t.Errorf("expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestGenerate_ToolUse(t *testing.T) {
	var req capturedRequest
	base := newTestModel(t, toolUseReply, &req)

	bound, err := base.WithTools([]*schema.ToolInfo{{
		Name: tools.SearchToolName,
		Desc: "search",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "query", Required: true},
		}),
	}})
	if err != nil {
		t.Fatalf("failed to bind tools: %v", err)
	}

	msg, err := bound.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("What is LangGraph?"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Content != "Let me look that up." {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "toolu_1" || tc.Function.Name != tools.SearchToolName {
		t.Errorf("unexpected tool call: %+v", tc)
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil || args["query"] != "langgraph" {
		t.Errorf("unexpected arguments %q", tc.Function.Arguments)
	}
	if msg.ResponseMeta.Usage.TotalTokens != 15 {
		t.Errorf("expected 15 total tokens, got %d", msg.ResponseMeta.Usage.TotalTokens)
	}

	if len(req.System) != 1 || req.System[0].Text != "be brief" {
		t.Errorf("system prompt not lifted: %+v", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
	if req.MaxTokens != defaultMaxTokens {
		t.Errorf("expected max_tokens %d, got %d", defaultMaxTokens, req.MaxTokens)
	}
	if len(req.Tools) != 1 || req.Tools[0].Name != tools.SearchToolName {
		t.Fatalf("expected search tool declared, got %+v", req.Tools)
	}
	if _, ok := req.Tools[0].InputSchema.Properties["query"]; !ok {
		t.Errorf("query property missing from input schema")
	}
	if len(req.Tools[0].InputSchema.Required) != 1 || req.Tools[0].InputSchema.Required[0] != "query" {
		t.Errorf("expected query to be required, got %v", req.Tools[0].InputSchema.Required)
	}
}

func TestToAnthropicMessages_GroupsToolResults(t *testing.T) {
	in := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("q"),
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{
				{ID: "a", Function: schema.FunctionCall{Name: "search_internet", Arguments: `{"query":"x"}`}},
				{ID: "b", Function: schema.FunctionCall{Name: "search_internet", Arguments: `not json`}},
			},
		},
		schema.ToolMessage("result a", "a"),
		schema.ToolMessage("result b", "b"),
	}

	out, system := toAnthropicMessages(in)
	if system != "sys" {
		t.Errorf("expected system 'sys', got %q", system)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	if got := len(out[1].Content); got != 2 {
		t.Errorf("expected 2 tool_use blocks, got %d", got)
	}
	if out[1].Content[1].OfToolUse == nil {
		t.Fatal("expected tool_use block")
	}
	if _, ok := out[1].Content[1].OfToolUse.Input.(map[string]any); !ok {
		t.Errorf("expected invalid arguments to be replaced with an empty object")
	}
	if got := len(out[2].Content); got != 2 {
		t.Fatalf("expected tool results grouped into one turn, got %d blocks", got)
	}
	for i, id := range []string{"a", "b"} {
		if out[2].Content[i].OfToolResult == nil || out[2].Content[i].OfToolResult.ToolUseID != id {
			t.Errorf("block %d: expected tool result for %s", i, id)
		}
	}
}
