package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrenware/scrivener/internal/events"
	"github.com/wrenware/scrivener/internal/llm"
	"github.com/wrenware/scrivener/internal/memory"
	"github.com/wrenware/scrivener/internal/notes"
	"github.com/wrenware/scrivener/internal/tools"
)

// scriptedClient returns canned responses in order and records every
// request it receives.
type scriptedClient struct {
	responses []*llm.Response
	requests  []*llm.Request
}

func (c *scriptedClient) Respond(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	if len(c.requests) > len(c.responses) {
		return nil, fmt.Errorf("unscripted request %d", len(c.requests))
	}
	return c.responses[len(c.requests)-1], nil
}

func (c *scriptedClient) Ping(ctx context.Context) error { return nil }

func textResponse(id, text string) *llm.Response {
	return &llm.Response{
		ID:    id,
		Model: "gpt-4o",
		Output: []llm.OutputItem{{
			Type:    "message",
			Role:    "assistant",
			Content: []llm.ContentPart{{Type: "output_text", Text: text}},
		}},
		Usage: llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func callResponse(id string, calls ...llm.OutputItem) *llm.Response {
	return &llm.Response{
		ID:     id,
		Model:  "gpt-4o",
		Output: calls,
		Usage:  llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}
}

func functionCall(callID, name, args string) llm.OutputItem {
	return llm.OutputItem{Type: "function_call", CallID: callID, Name: name, Arguments: args}
}

func testLoop(t *testing.T, client llm.Client, maxRounds int) (*Loop, *memory.Store) {
	t.Helper()
	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "memory"), nil)
	noteStore := notes.NewStore(filepath.Join(dir, "notes"), nil)

	registry := tools.NewRegistry(nil)
	registry.RegisterAll(notes.Tools(noteStore))
	registry.Register(memory.SaveTool(mem))

	return New(Config{
		Client:    client,
		Registry:  registry,
		Memory:    mem,
		Model:     "gpt-4o",
		MaxRounds: maxRounds,
	}), mem
}

func TestRun_DirectReply(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResponse("resp_1", "Hello there."),
	}}
	loop, _ := testLoop(t, client, 0)

	reply, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: hi")},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != "Hello there." {
		t.Errorf("reply = %q", reply)
	}

	if len(client.requests) != 1 {
		t.Fatalf("requests = %d, want 1", len(client.requests))
	}
	first := client.requests[0]
	if first.PreviousResponseID != "" {
		t.Error("first round must not link a previous response")
	}
	if first.Instructions == "" {
		t.Error("first round must carry system instructions")
	}
	if len(first.Tools) == 0 {
		t.Error("tools payload missing")
	}
}

func TestRun_MemoryRoundTrip(t *testing.T) {
	// The model saves a fact, gets the confirmation correlated to its
	// call, then produces a final reply.
	client := &scriptedClient{responses: []*llm.Response{
		callResponse("resp_1", functionCall("call_1", "save_memory", `{"fact":"Likes tea"}`)),
		textResponse("resp_2", "Noted that you like tea."),
	}}
	loop, mem := testLoop(t, client, 0)

	reply, err := loop.Run(context.Background(), Request{
		User:  "U123",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: remember that I like tea")},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != "Noted that you like tea." {
		t.Errorf("reply = %q", reply)
	}

	if len(client.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(client.requests))
	}
	second := client.requests[1]
	if second.PreviousResponseID != "resp_1" {
		t.Errorf("PreviousResponseID = %q, want resp_1", second.PreviousResponseID)
	}
	if len(second.Input) != 1 {
		t.Fatalf("second round input = %v", second.Input)
	}
	out := second.Input[0]
	if out.Type != "function_call_output" || out.CallID != "call_1" {
		t.Errorf("result not correlated to call: %+v", out)
	}
	if out.Output != "Saved: Likes tea" {
		t.Errorf("tool output = %q", out.Output)
	}
	if second.Instructions != "" {
		t.Error("follow-up rounds must not resend instructions")
	}

	// The fact landed in the right user's memory.
	content, err := mem.Load("U123")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "- Likes tea\n") {
		t.Errorf("memory = %q, want saved fact", content)
	}
}

func TestRun_MemoryInjectedIntoInstructions(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		textResponse("resp_1", "ok"),
	}}
	loop, mem := testLoop(t, client, 0)
	if _, err := mem.Save("U123", "Prefers metric units"); err != nil {
		t.Fatal(err)
	}

	if _, err := loop.Run(context.Background(), Request{
		User:  "U123",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: hi")},
	}); err != nil {
		t.Fatal(err)
	}

	instr := client.requests[0].Instructions
	if !strings.Contains(instr, "- Prefers metric units") {
		t.Errorf("instructions missing user memory:\n%s", instr)
	}
}

func TestRun_MultipleCallsOneRound(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		callResponse("resp_1",
			functionCall("call_a", "write_note", `{"key":"a.md","content":"alpha"}`),
			functionCall("call_b", "write_note", `{"key":"b.md","content":"beta"}`),
		),
		textResponse("resp_2", "Both saved."),
	}}
	loop, _ := testLoop(t, client, 0)

	reply, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: save both")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Both saved." {
		t.Errorf("reply = %q", reply)
	}

	second := client.requests[1]
	if len(second.Input) != 2 {
		t.Fatalf("second round input = %v", second.Input)
	}
	// One result per call, in call order.
	if second.Input[0].CallID != "call_a" || second.Input[1].CallID != "call_b" {
		t.Errorf("results out of order: %+v", second.Input)
	}
	if second.Input[0].Output != "Saved 'a.md'." || second.Input[1].Output != "Saved 'b.md'." {
		t.Errorf("outputs = %+v", second.Input)
	}
}

func TestRun_ToolFailureDoesNotAbort(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		callResponse("resp_1", functionCall("call_1", "no_such_tool", `{}`)),
		textResponse("resp_2", "Sorry, I can't do that."),
	}}
	loop, _ := testLoop(t, client, 0)

	reply, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: do the thing")},
	})
	if err != nil {
		t.Fatalf("unknown tool aborted the run: %v", err)
	}
	if reply != "Sorry, I can't do that." {
		t.Errorf("reply = %q", reply)
	}

	out := client.requests[1].Input[0]
	if out.Output != "Unknown function: no_such_tool" {
		t.Errorf("tool output = %q", out.Output)
	}
}

func TestRun_RoundLimit(t *testing.T) {
	// The model keeps asking for tools forever; the loop must stop at
	// the cap with a terminal reply instead of spinning.
	var responses []*llm.Response
	for i := 0; i < 10; i++ {
		responses = append(responses, callResponse(
			fmt.Sprintf("resp_%d", i+1),
			functionCall(fmt.Sprintf("call_%d", i+1), "list_notes", `{}`),
		))
	}
	client := &scriptedClient{responses: responses}
	loop, _ := testLoop(t, client, 3)

	reply, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: loop forever")},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != roundLimitReply {
		t.Errorf("reply = %q, want round limit reply", reply)
	}
	if len(client.requests) != 3 {
		t.Errorf("requests = %d, want exactly the round cap", len(client.requests))
	}
}

func TestRun_EndpointErrorPropagates(t *testing.T) {
	client := &scriptedClient{} // no scripted responses: every call errors
	loop, _ := testLoop(t, client, 0)

	_, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: hi")},
	})
	if err == nil {
		t.Fatal("endpoint failure must propagate")
	}
	if !strings.Contains(err.Error(), "completion round 1") {
		t.Errorf("error = %v, want round context", err)
	}
}

func TestRun_PublishesEvents(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		callResponse("resp_1", functionCall("call_1", "list_notes", `{}`)),
		textResponse("resp_2", "No notes yet."),
	}}

	dir := t.TempDir()
	mem := memory.NewStore(filepath.Join(dir, "memory"), nil)
	registry := tools.NewRegistry(nil)
	registry.RegisterAll(notes.Tools(notes.NewStore(filepath.Join(dir, "notes"), nil)))

	bus := events.New()
	ch := bus.Subscribe(64)
	defer bus.Unsubscribe(ch)

	loop := New(Config{
		Client: client, Registry: registry, Memory: mem,
		Bus: bus, Model: "gpt-4o",
	})

	if _, err := loop.Run(context.Background(), Request{
		User:  "dana",
		Turns: []llm.InputItem{llm.UserMessage("[dana]: anything stored?")},
	}); err != nil {
		t.Fatal(err)
	}

	kinds := map[string]int{}
	for len(ch) > 0 {
		e := <-ch
		if e.Source != events.SourceAgent {
			t.Errorf("event source = %q", e.Source)
		}
		kinds[e.Kind]++
	}
	for _, want := range []string{
		events.KindRequestStart, events.KindRound,
		events.KindToolCall, events.KindToolDone, events.KindRequestComplete,
	} {
		if kinds[want] == 0 {
			t.Errorf("no %s event published (got %v)", want, kinds)
		}
	}
	if kinds[events.KindRound] != 2 {
		t.Errorf("round events = %d, want 2", kinds[events.KindRound])
	}
}
