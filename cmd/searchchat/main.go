package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/olusolaa/searchchat/agent"
	"github.com/olusolaa/searchchat/foundation/config"
	"github.com/olusolaa/searchchat/foundation/llm"
	"github.com/olusolaa/searchchat/ui"
)

func main() {
	if err := run(); err != nil {
		logrus.Fatalf("❌ Application failed: %v", err)
	}
}

// run loads the configuration, wires the dependencies and starts the loop.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := config.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"provider": cfg.Provider, "model": cfg.Model}).Info("✅ Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chatModel, err := llm.NewChatModel(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}

	dispatcher, err := agent.SetupDispatcher(ctx, cfg, log)
	if err != nil {
		return err
	}

	conv, err := agent.NewConversation(ctx, agent.ConversationConfig{
		Model:         chatModel,
		Dispatcher:    dispatcher,
		MaxToolRounds: cfg.MaxToolRounds,
		SystemPrompt:  cfg.SystemPrompt,
		Log:           log,
	})
	if err != nil {
		return fmt.Errorf("failed to build conversation graph: %w", err)
	}

	terminal := ui.New(os.Stdin, os.Stdout)
	bot := agent.New(conv, terminal, log, agent.Options{
		TurnTimeout: cfg.TurnTimeout,
		Remember:    cfg.Remember,
	})
	return bot.Run(ctx)
}
