package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/olusolaa/searchchat/foundation/tools"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role       string `json:"role"`
		Content    any    `json:"content"`
		ToolCallID string `json:"tool_call_id"`
		ToolCalls  []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"messages"`
	Tools []struct {
		Type     string `json:"type"`
		Function struct {
			Name       string         `json:"name"`
			Parameters map[string]any `json:"parameters"`
		} `json:"function"`
	} `json:"tools"`
}

func newTestModel(t *testing.T, respBody string, captured *capturedRequest) *ChatModel {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected authorization header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			if err := json.Unmarshal(body, captured); err != nil {
				t.Errorf("failed to decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)

	m, err := NewChatModel(context.Background(), &Config{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/",
		Model:   "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("failed to create chat model: %v", err)
	}
	return m
}

const textReply = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "LangGraph is a library."}}],
  "usage": {"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9}
}`

const toolReply = `{
  "id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
  "choices": [{"index": 0, "finish_reason": "tool_calls",
    "message": {"role": "assistant", "content": null, "tool_calls": [
      {"id": "call_1", "type": "function", "function": {"name": "search_internet", "arguments": "{\"query\":\"langgraph\"}"}}
    ]}}],
  "usage": {"prompt_tokens": 5, "completion_tokens": 4, "total_tokens": 9}
}`

func TestNewChatModel_MissingAPIKey(t *testing.T) {
	_, err := NewChatModel(context.Background(), &Config{Model: "gpt-4o-mini"})
	if err == nil {
		t.Fatal("expected error when api key is missing, got nil")
	}
	expectedMsg := "OPENAI_API_KEY environment variable is required"
	if err.Error() != expectedMsg {
		t.Errorf("expected error message '%s', got '%s'", expectedMsg, err.Error())
	}
}

func TestGenerate_Text(t *testing.T) {
	var req capturedRequest
	m := newTestModel(t, textReply, &req)

	msg, err := m.Generate(context.Background(), []*schema.Message{
		schema.SystemMessage("be brief"),
		schema.UserMessage("What is LangGraph?"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.Role != schema.Assistant {
		t.Errorf("expected assistant role, got %s", msg.Role)
	}
	if msg.Content != "LangGraph is a library." {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if len(msg.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(msg.ToolCalls))
	}
	if msg.ResponseMeta == nil || msg.ResponseMeta.Usage.TotalTokens != 9 {
		t.Errorf("expected usage to be carried over, got %+v", msg.ResponseMeta)
	}

	if req.Model != "gpt-4o-mini" {
		t.Errorf("expected model gpt-4o-mini, got %s", req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
		t.Errorf("unexpected request messages: %+v", req.Messages)
	}
	if len(req.Tools) != 0 {
		t.Errorf("expected no tools without WithTools, got %d", len(req.Tools))
	}
}

func TestGenerate_ToolCalls(t *testing.T) {
	var req capturedRequest
	base := newTestModel(t, toolReply, &req)

	info := &schema.ToolInfo{
		Name: tools.SearchToolName,
		Desc: "search",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "query", Required: true},
		}),
	}
	bound, err := base.WithTools([]*schema.ToolInfo{info})
	if err != nil {
		t.Fatalf("failed to bind tools: %v", err)
	}

	history := []*schema.Message{
		schema.UserMessage("earlier"),
		{
			Role: schema.Assistant,
			ToolCalls: []schema.ToolCall{{
				ID:       "call_0",
				Function: schema.FunctionCall{Name: tools.SearchToolName, Arguments: `{"query":"x"}`},
			}},
		},
		schema.ToolMessage("Source: https://x.example\nx", "call_0"),
	}

	msg, err := bound.Generate(context.Background(), history)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	tc := msg.ToolCalls[0]
	if tc.ID != "call_1" || tc.Function.Name != tools.SearchToolName || tc.Function.Arguments != `{"query":"langgraph"}` {
		t.Errorf("unexpected tool call: %+v", tc)
	}

	if len(req.Tools) != 1 || req.Tools[0].Function.Name != tools.SearchToolName {
		t.Fatalf("expected search tool declared, got %+v", req.Tools)
	}
	if req.Tools[0].Function.Parameters["type"] != "object" {
		t.Errorf("expected object parameters, got %v", req.Tools[0].Function.Parameters)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 request messages, got %d", len(req.Messages))
	}
	if got := req.Messages[1]; got.Role != "assistant" || len(got.ToolCalls) != 1 || got.ToolCalls[0].ID != "call_0" {
		t.Errorf("assistant tool call not forwarded: %+v", got)
	}
	if got := req.Messages[2]; got.Role != "tool" || got.ToolCallID != "call_0" {
		t.Errorf("tool result not forwarded: %+v", got)
	}

	if len(base.tools) != 0 {
		t.Error("WithTools mutated the original model")
	}
}

func TestGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	m, err := NewChatModel(context.Background(), &Config{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("failed to create chat model: %v", err)
	}
	if _, err := m.Generate(context.Background(), []*schema.Message{schema.UserMessage("hi")}); err == nil {
		t.Error("expected error for 401 response, got nil")
	}
}

func TestStream_SingleChunk(t *testing.T) {
	m := newTestModel(t, textReply, nil)

	sr, err := m.Stream(context.Background(), []*schema.Message{schema.UserMessage("hi")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sr.Close()

	chunk, err := sr.Recv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Content != "LangGraph is a library." {
		t.Errorf("unexpected chunk %q", chunk.Content)
	}
	if _, err := sr.Recv(); err != io.EOF {
		t.Errorf("expected io.EOF after single chunk, got %v", err)
	}
}
