// Package openai adapts the OpenAI Chat Completions API, or any endpoint compatible
// with it, to eino's ToolCallingChatModel.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/olusolaa/searchchat/foundation/tools"
)

// Config configures the chat model.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// ChatModel calls Chat Completions. It is immutable; WithTools returns a copy.
type ChatModel struct {
	client *openaisdk.Client
	model  string
	tools  []openaisdk.ChatCompletionToolUnionParam
}

// NewChatModel creates a chat model from cfg.
func NewChatModel(_ context.Context, cfg *Config) (*ChatModel, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is required")
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

	c := openaisdk.NewClient(opts...)
	return &ChatModel{client: &c, model: cfg.Model}, nil
}

// Generate sends the conversation and converts the first choice back to a schema.Message.
func (m *ChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{Model: &m.model}, opts...)

	messages, err := toOpenAIMessages(in)
	if err != nil {
		return nil, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(*options.Model),
		Messages: messages,
		Tools:    m.tools,
	}
	if options.Tools != nil {
		if params.Tools, err = toOpenAITools(options.Tools); err != nil {
			return nil, err
		}
	}
	if options.Temperature != nil {
		params.Temperature = openaisdk.Float(float64(*options.Temperature))
	}
	if options.MaxTokens != nil {
		params.MaxCompletionTokens = openaisdk.Int(int64(*options.MaxTokens))
	}

	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to send message to OpenAI: %w", err)
	}
	return fromOpenAIResponse(resp)
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
	converted, err := toOpenAITools(infos)
	if err != nil {
		return nil, err
	}
	clone := *m
	clone.tools = converted
	return &clone, nil
}

func fromOpenAIResponse(resp *openaisdk.ChatCompletion) (*schema.Message, error) {
	if len(resp.Choices) == 0 {
		return nil, errors.New("OpenAI returned no choices")
	}

	choice := resp.Choices[0]
	out := &schema.Message{
		Role:    schema.Assistant,
		Content: choice.Message.Content,
		ResponseMeta: &schema.ResponseMeta{
			FinishReason: choice.FinishReason,
			Usage: &schema.TokenUsage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			},
		},
	}

	// Arguments are kept verbatim; validating them is the dispatcher's job.
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, schema.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return out, nil
}

func toOpenAIMessages(in []*schema.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(in))
	for _, msg := range in {
		switch msg.Role {
		case schema.System:
			out = append(out, openaisdk.SystemMessage(msg.Content))
		case schema.User:
			out = append(out, openaisdk.UserMessage(msg.Content))
		case schema.Assistant:
			// Built as a param directly: ToParam on a response type replays its raw JSON.
			var assistant openaisdk.ChatCompletionAssistantMessageParam
			if msg.Content != "" {
				assistant.Content.OfString = openaisdk.String(msg.Content)
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					},
				})
			}
			out = append(out, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case schema.Tool:
			out = append(out, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return out, nil
}

func toOpenAITools(infos []*schema.ToolInfo) ([]openaisdk.ChatCompletionToolUnionParam, error) {
	if len(infos) == 0 {
		return nil, nil
	}
	out := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(infos))
	for _, info := range infos {
		params, err := tools.ParametersSchema(info)
		if err != nil {
			return nil, err
		}
		out = append(out, openaisdk.ChatCompletionFunctionTool(openaisdk.FunctionDefinitionParam{
			Name:        info.Name,
			Description: openaisdk.String(info.Desc),
			Parameters:  openaisdk.FunctionParameters(params),
		}))
	}
	return out, nil
}

var _ model.ToolCallingChatModel = (*ChatModel)(nil)
