package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/olusolaa/searchchat/foundation/config"
	"github.com/olusolaa/searchchat/foundation/search"
	"github.com/olusolaa/searchchat/foundation/tools"
)

// SetupDispatcher builds the configured search backend, wraps it as the
// search_internet tool and registers it with a new Dispatcher. It returns nil when
// search is disabled.
func SetupDispatcher(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Dispatcher, error) {
	if cfg.Search.Provider == config.SearchNone {
		log.Info("ℹ️ Web search disabled")
		return nil, nil
	}

	searcher, err := search.New(search.Options{
		Provider:  cfg.Search.Provider,
		TavilyKey: cfg.Search.TavilyKey,
		BraveKey:  cfg.Search.BraveKey,
		Depth:     cfg.Search.Depth,
		Timeout:   cfg.RequestTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create searcher: %w", err)
	}

	searchTool, err := tools.NewSearchTool(searcher, cfg.Search.MaxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	return NewDispatcher(ctx, log, searchTool)
}
