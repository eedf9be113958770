package gemini

import (
	"context"
	"fmt"
	"net/http"
	"time"

	geminiModel "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

const ChatModelName = "gemini-2.5-flash"

// Config configures the Gemini client and chat model.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a new Gemini API client.
func NewClient(ctx context.Context, cfg *Config) (*genai.Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return client, nil
}

// NewChatModel creates a new Gemini chat model. An empty model name selects ChatModelName.
func NewChatModel(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	name := cfg.Model
	if name == "" {
		name = ChatModelName
	}

	chatModel, err := geminiModel.NewChatModel(ctx, &geminiModel.Config{
		Client: client,
		Model:  name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return chatModel, nil
}
