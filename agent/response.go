package agent

import "github.com/cloudwego/eino/schema"

// Response is what one model call produced: either a terminal answer or a request
// to run tools before the model is asked again.
type Response interface {
	Msg() *schema.Message
	isResponse()
}

// Final is a terminal assistant message.
type Final struct {
	Message *schema.Message
}

// ToolRequest is an assistant message carrying pending tool invocations.
type ToolRequest struct {
	Message *schema.Message
	Calls   []schema.ToolCall
}

func (f Final) Msg() *schema.Message       { return f.Message }
func (r ToolRequest) Msg() *schema.Message { return r.Message }

func (Final) isResponse()       {}
func (ToolRequest) isResponse() {}

// NewResponse classifies a model reply.
func NewResponse(msg *schema.Message) Response {
	if len(msg.ToolCalls) > 0 {
		return ToolRequest{Message: msg, Calls: msg.ToolCalls}
	}
	return Final{Message: msg}
}
