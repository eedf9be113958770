package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/olusolaa/searchchat/foundation/search"
	"github.com/olusolaa/searchchat/foundation/tools"
)

// KindSearchSummary tags tool messages that carry a formatted search summary.
const KindSearchSummary = "search_summary"

// Dispatcher executes the tool invocations of one assistant reply.
type Dispatcher struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
	log   logrus.FieldLogger
}

// NewDispatcher registers ts by the names they report.
func NewDispatcher(ctx context.Context, log logrus.FieldLogger, ts ...tool.InvokableTool) (*Dispatcher, error) {
	d := &Dispatcher{
		tools: make(map[string]tool.InvokableTool, len(ts)),
		log:   log,
	}
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		if _, dup := d.tools[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", info.Name)
		}
		d.tools[info.Name] = t
		d.infos = append(d.infos, info)
	}
	return d, nil
}

// Infos returns the declarations to bind to the chat model.
func (d *Dispatcher) Infos() []*schema.ToolInfo {
	return d.infos
}

// Dispatch runs calls in order and returns one tool message per call. Malformed
// calls are skipped. A failing tool aborts the dispatch with ErrTool.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []schema.ToolCall) ([]*schema.Message, error) {
	out := make([]*schema.Message, 0, len(calls))

	for _, call := range calls {
		id := call.ID
		if id == "" {
			id = uuid.NewString()
		}
		log := d.log.WithFields(logrus.Fields{"tool": call.Function.Name, "call_id": id})

		t, query, err := d.validate(call)
		if err != nil {
			log.WithField("category", Category(err)).Warnf("skipping tool call: %v", err)
			out = append(out, schema.ToolMessage(fmt.Sprintf("Skipped: %v", err), id, schema.WithToolName(call.Function.Name)))
			continue
		}

		log.WithField("query", query).Debug("running tool")
		raw, err := t.InvokableRun(ctx, call.Function.Arguments)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrTool, call.Function.Name, err)
		}

		content, err := summarize(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTool, call.Function.Name, err)
		}

		msg := schema.ToolMessage(content, id, schema.WithToolName(call.Function.Name))
		msg.Extra = map[string]any{"kind": KindSearchSummary}
		out = append(out, msg)
	}

	return out, nil
}

func (d *Dispatcher) validate(call schema.ToolCall) (tool.InvokableTool, string, error) {
	t, ok := d.tools[call.Function.Name]
	if !ok {
		return nil, "", fmt.Errorf("%w: unknown tool %q", ErrMalformedInvocation, call.Function.Name)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args == nil {
		return nil, "", fmt.Errorf("%w: arguments are not a JSON object", ErrMalformedInvocation)
	}
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return nil, "", fmt.Errorf("%w: missing query", ErrMalformedInvocation)
	}
	return t, query, nil
}

func summarize(raw string) (string, error) {
	var resp tools.SearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return "", fmt.Errorf("failed to decode tool output: %w", err)
	}
	return FormatResults(resp.Results), nil
}

// FormatResults renders search results as the text the model reads back.
func FormatResults(results []search.Result) string {
	if len(results) == 0 {
		return noResultsMessage
	}
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("Source: %s\n%s", r.URL, r.Content))
	}
	return searchSummaryHead + strings.Join(parts, "\n\n")
}
