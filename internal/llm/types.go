// Package llm provides the completion endpoint client.
package llm

import (
	"encoding/json"
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// InputItem is one element of a request's input list: either a role
// message or a function call result being returned to the endpoint.
type InputItem struct {
	Type    string `json:"type,omitempty"` // empty for role messages, "function_call_output" for results
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
	CallID  string `json:"call_id,omitempty"`
	Output  string `json:"output,omitempty"`
}

// UserMessage builds a user-role input item.
func UserMessage(text string) InputItem {
	return InputItem{Role: "user", Content: text}
}

// AssistantMessage builds an assistant-role input item.
func AssistantMessage(text string) InputItem {
	return InputItem{Role: "assistant", Content: text}
}

// FunctionCallOutput builds a tool-result input item correlated to the
// originating call by its call id.
func FunctionCallOutput(callID, output string) InputItem {
	return InputItem{Type: "function_call_output", CallID: callID, Output: output}
}

// Request is a completion request. PreviousResponseID links follow-up
// rounds to the server-held conversation state so only the new items
// travel in Input.
type Request struct {
	Model              string
	Instructions       string
	Input              []InputItem
	Tools              []map[string]any
	PreviousResponseID string
}

// OutputItem is one element of a response's output list. Type
// discriminates: "message" carries assistant text in Content,
// "function_call" carries a tool invocation, anything else is an
// endpoint-side action (e.g. a hosted web search) surfaced for logging.
type OutputItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Status    string          `json:"status,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   []ContentPart   `json:"content,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	Action    json.RawMessage `json:"action,omitempty"`
}

// ContentPart is a fragment of a message output item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage reports token consumption for one request/response pair.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Response is a completion response.
type Response struct {
	ID     string       `json:"id"`
	Model  string       `json:"model"`
	Output []OutputItem `json:"output"`
	Usage  Usage        `json:"usage"`
}

// OutputText concatenates the text of all message items, which is the
// model's user-facing reply.
func (r *Response) OutputText() string {
	var out string
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				out += part.Text
			}
		}
	}
	return out
}

// FunctionCalls returns the function_call output items in order. An
// empty result means the response is terminal.
func (r *Response) FunctionCalls() []OutputItem {
	var calls []OutputItem
	for _, item := range r.Output {
		if item.Type == "function_call" {
			calls = append(calls, item)
		}
	}
	return calls
}

// SideChannel returns output items that are neither messages nor
// function calls, such as hosted web search activity. These carry no
// work for the caller but are logged for visibility.
func (r *Response) SideChannel() []OutputItem {
	var items []OutputItem
	for _, item := range r.Output {
		if item.Type == "message" || item.Type == "function_call" {
			continue
		}
		items = append(items, item)
	}
	return items
}
