// Package ui renders the chat in a terminal.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/callbacks"
)

// TerminalUI handles all rendering and user interaction in the terminal.
// Its callbacks handler drives a spinner while a watched graph node runs.
type TerminalUI struct {
	in      io.Reader
	mu      sync.Mutex
	out     io.Writer
	spinner *Spinner

	colorUser      func(a ...interface{}) string
	colorBot       func(a ...interface{}) string
	colorTool      func(a ...interface{}) string
	colorSuccess   func(a ...interface{}) string
	colorError     func(a ...interface{}) string
	colorMuted     func(a ...interface{}) string
	colorHighlight func(a ...interface{}) string

	activeMu   sync.Mutex
	activeNode string
}

// Color helper functions using ANSI codes
func colorize(color string, text ...interface{}) string {
	return fmt.Sprintf("%s%s\033[0m", color, fmt.Sprint(text...))
}

const (
	colorCodeBlue      = "\033[94;1m"
	colorCodeYellow    = "\033[93;1m"
	colorCodeGreen     = "\033[32m"
	colorCodeRedNormal = "\033[31m"
	colorCodeMuted     = "\033[2m"
	colorCodeCyan      = "\033[36m"
)

// New creates a TerminalUI reading lines from in and writing to out.
func New(in io.Reader, out io.Writer) *TerminalUI {
	t := &TerminalUI{
		in:  in,
		out: out,
		colorUser: func(a ...interface{}) string {
			return colorize(colorCodeBlue, a...)
		},
		colorBot: func(a ...interface{}) string {
			return colorize(colorCodeYellow, a...)
		},
		colorTool: func(a ...interface{}) string {
			return colorize(colorCodeGreen, a...)
		},
		colorSuccess: func(a ...interface{}) string {
			return colorize(colorCodeGreen, a...)
		},
		colorError: func(a ...interface{}) string {
			return colorize(colorCodeRedNormal, a...)
		},
		colorMuted: func(a ...interface{}) string {
			return colorize(colorCodeMuted, a...)
		},
		colorHighlight: func(a ...interface{}) string {
			return colorize(colorCodeCyan, a...)
		},
	}
	t.spinner = NewSpinner(100*time.Millisecond, t.printf)
	return t
}

func (t *TerminalUI) printf(format string, a ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format, a...)
}

// DisplayWelcome prints the initial banner and instructions.
func (t *TerminalUI) DisplayWelcome() {
	border := "══════════════════════════════════════════════════════════════"
	t.printf("%s\n", t.colorHighlight("╔"+border+"╗"))
	t.printf("%s%s%s\n", t.colorHighlight("║"), "    🌐 Welcome to the chatbot with web search capabilities!   ", t.colorHighlight("║"))
	t.printf("%s\n", t.colorHighlight("╚"+border+"╝"))
	t.printf("%s\n", t.colorMuted("\nAsk me anything, and I'll search the web if needed."))
	t.printf("%s\n", t.colorMuted("Type 'quit', 'exit', or 'q' to end the conversation."))
	t.printf("%s\n", t.colorMuted(strings.Repeat("─", 62)))
}

// ReadLines reads lines from the input on a separate goroutine so callers can
// select on them alongside cancellation. The channel closes on EOF or when ctx ends.
func (t *TerminalUI) ReadLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// DisplayUserPrompt prompts the user for the next line.
func (t *TerminalUI) DisplayUserPrompt() {
	t.printf("\n%s ", t.colorUser("User:"))
}

// DisplayAnswer prints the assistant's reply.
func (t *TerminalUI) DisplayAnswer(answer string) {
	t.printf("%s %s\n", t.colorBot("Assistant:"), answer)
}

// DisplayError prints a formatted error message.
func (t *TerminalUI) DisplayError(err error) {
	t.printf("\n%s %v\n", t.colorError("Error:"), err)
}

// DisplayGoodbye prints the farewell.
func (t *TerminalUI) DisplayGoodbye() {
	t.printf("\nGoodbye!\n")
}

// Build creates a callbacks.Handler that shows the spinner while the graph node
// named node runs.
func (t *TerminalUI) Build(node string) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info.Name != node {
				return ctx
			}
			t.activeMu.Lock()
			defer t.activeMu.Unlock()

			t.activeNode = info.Name
			t.spinner.Start(fmt.Sprintf(" 🌐 %s", t.colorTool("searching the web")))
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			t.stopSpinner(info.Name, t.colorSuccess("✓\n"))
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, _ error) context.Context {
			t.stopSpinner(info.Name, t.colorError("✗\n"))
			return ctx
		}).
		Build()
}

func (t *TerminalUI) stopSpinner(name, final string) {
	t.activeMu.Lock()
	defer t.activeMu.Unlock()

	if name != "" && name == t.activeNode {
		t.spinner.Stop(final)
		t.activeNode = ""
	}
}

// --- Spinner ---

// Spinner provides a simple terminal spinner.
type Spinner struct {
	interval time.Duration
	write    func(format string, a ...interface{})

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
}

func NewSpinner(d time.Duration, write func(format string, a ...interface{})) *Spinner {
	return &Spinner{interval: d, write: write}
}

// Start animates message until Stop. Starting an active spinner is a no-op.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan != nil {
		return
	}
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		frames := []rune(`⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏`)
		i := 0
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.write("\r%s%s ", message, string(frames[i%len(frames)]))
				i++
			}
		}
	}(s.stopChan, s.done)
}

// Stop halts the animation and prints finalMessage. Stopping an idle spinner is a no-op.
func (s *Spinner) Stop(finalMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopChan == nil {
		return
	}
	close(s.stopChan)
	<-s.done
	s.stopChan, s.done = nil, nil
	s.write("\r%s", finalMessage)
}
