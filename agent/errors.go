package agent

import (
	"context"
	"errors"
)

// Failure categories. A turn that fails carries one of these on Turn.Err.
var (
	ErrModel               = errors.New("model call failed")
	ErrTool                = errors.New("tool execution failed")
	ErrMalformedInvocation = errors.New("malformed tool invocation")
	ErrToolRoundsExceeded  = errors.New("tool rounds exceeded")
)

const (
	genericApology    = "I apologize, but I encountered an error processing your request."
	roundsApology     = "I apologize, but I couldn't finish researching your question. Please try asking it more specifically."
	noResultsMessage  = "I couldn't find any relevant information."
	searchSummaryHead = "Based on the search results:\n\n"
)

// Apology returns the text shown to the user for a failed turn. It returns an empty
// string for nil and for interruptions, which end the turn without a reply.
func Apology(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return ""
	case errors.Is(err, ErrToolRoundsExceeded):
		return roundsApology
	default:
		return genericApology
	}
}

// Category names err's failure category for logging.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "interrupted"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrModel):
		return "model"
	case errors.Is(err, ErrTool):
		return "tool"
	case errors.Is(err, ErrMalformedInvocation):
		return "malformed_invocation"
	case errors.Is(err, ErrToolRoundsExceeded):
		return "tool_rounds_exceeded"
	default:
		return "internal"
	}
}
