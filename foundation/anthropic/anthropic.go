// Package anthropic adapts the Anthropic Messages API to eino's ToolCallingChatModel.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/olusolaa/searchchat/foundation/tools"
)

const defaultMaxTokens = 4096

// Config configures the chat model.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// ChatModel calls the Messages API. WithTools returns a copy.
type ChatModel struct {
	client    *anthropicsdk.Client
	model     string
	maxTokens int64
	tools     []anthropicsdk.ToolUnionParam
}

// NewChatModel creates a chat model from cfg.
func NewChatModel(_ context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model name cannot be empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	c := anthropicsdk.NewClient(opts...)
	return &ChatModel{client: &c, model: cfg.Model, maxTokens: maxTokens}, nil
}

// Generate sends the conversation and folds the reply's content blocks into one message.
func (m *ChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Model: &m.model}, opts...)

	messages, system := toAnthropicMessages(in)

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(*options.Model),
		MaxTokens: m.maxTokens,
		Messages:  messages,
		Tools:     m.tools,
	}
	if system != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: system}}
	}
	if options.Tools != nil {
		converted, err := toAnthropicTools(options.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = converted
	}
	if options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*options.Temperature))
	}
	if options.MaxTokens != nil {
		params.MaxTokens = int64(*options.MaxTokens)
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to Anthropic: %w", err)
	}
	return fromAnthropicResponse(resp), nil
}

// Stream returns the full reply as a single-chunk stream.
func (m *ChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// WithTools returns a copy of the model that declares infos on every request.
func (m *ChatModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	converted, err := toAnthropicTools(infos)
	if err != nil {
		return nil, err
	}
	clone := *m
	clone.tools = converted
	return &clone, nil
}

func fromAnthropicResponse(resp *anthropicsdk.Message) *schema.Message {
	out := &schema.Message{
		Role: schema.Assistant,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: string(resp.StopReason),
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
			},
		},
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			text.WriteString(b.Text)
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
				ID:   b.ID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      b.Name,
					Arguments: string(b.Input),
				},
			})
		}
	}
	out.Content = text.String()
	return out
}

// toAnthropicMessages converts the history. System messages are lifted into the
// top-level system prompt and consecutive tool results share one user turn, which
// is how the Messages API expects them.
func toAnthropicMessages(in []*schema.Message) ([]anthropicsdk.MessageParam, string) {
	var (
		out    []anthropicsdk.MessageParam
		system []string
	)

	for _, msg := range in {
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)

		case schema.User:
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content)))

		case schema.Assistant:
			var blocks []anthropicsdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropicsdk.ContentBlockParamUnion{
					OfToolUse: &anthropicsdk.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Function.Name,
						Input: toolInput(tc.Function.Arguments),
					},
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicsdk.NewAssistantMessage(blocks...))

		case schema.Tool:
			block := anthropicsdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false)
			if n := len(out); n > 0 && out[n-1].Role == anthropicsdk.MessageParamRoleUser && isToolResultTurn(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, anthropicsdk.NewUserMessage(block))
		}
	}

	return out, strings.Join(system, "\n\n")
}

func isToolResultTurn(msg anthropicsdk.MessageParam) bool {
	for _, block := range msg.Content {
		if block.OfToolResult == nil {
			return false
		}
	}
	return len(msg.Content) > 0
}

// toolInput forwards arguments verbatim when they are valid JSON.
func toolInput(args string) any {
	if json.Valid([]byte(args)) {
		return json.RawMessage(args)
	}
	return map[string]any{}
}

func toAnthropicTools(infos []*schema.ToolInfo) ([]anthropicsdk.ToolUnionParam, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	out := make([]anthropicsdk.ToolUnionParam, 0, len(infos))
	for _, info := range infos {
		params, err := tools.ParametersSchema(info)
		if err != nil {
			return nil, err
		}

		inputSchema := anthropicsdk.ToolInputSchemaParam{Properties: params["properties"]}
		if req, ok := params["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					inputSchema.Required = append(inputSchema.Required, s)
				}
			}
		}

		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &anthropicsdk.ToolParam{
			Name:        info.Name,
			Description: anthropicsdk.String(info.Desc),
			InputSchema: inputSchema,
		}})
	}
	return out, nil
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)
