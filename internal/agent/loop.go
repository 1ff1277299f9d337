// Package agent implements the conversation orchestrator: it carries a
// request through as many completion rounds as the model needs,
// dispatching tool calls between rounds, until the model produces a
// final text reply or the round cap is reached.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/wrenware/scrivener/internal/events"
	"github.com/wrenware/scrivener/internal/llm"
	"github.com/wrenware/scrivener/internal/memory"
	"github.com/wrenware/scrivener/internal/prompts"
	"github.com/wrenware/scrivener/internal/tools"
	"github.com/wrenware/scrivener/internal/usage"
)

// defaultMaxRounds bounds the number of tool rounds per request. Each
// round is one full exchange with the completion endpoint.
const defaultMaxRounds = 8

// roundLimitReply is returned when a request exhausts its round budget
// before the model produces a final text reply.
const roundLimitReply = "I had to stop before finishing — that request needed more tool calls " +
	"than I allow in one turn. Try breaking it into smaller steps."

// Config wires a Loop's collaborators. Client, Registry, and Memory are
// required; Usage and Bus may be nil.
type Config struct {
	Client    llm.Client
	Registry  *tools.Registry
	Memory    *memory.Store
	Usage     *usage.Store
	Bus       *events.Bus
	Model     string
	MaxRounds int
	Logger    *slog.Logger
}

// Loop orchestrates multi-round conversations.
type Loop struct {
	client    llm.Client
	registry  *tools.Registry
	memory    *memory.Store
	usage     *usage.Store
	bus       *events.Bus
	model     string
	maxRounds int
	logger    *slog.Logger
}

// Request is one conversation turn to answer. Turns carries the full
// thread history as input items, newest last; User identifies the
// sender whose memory is loaded and written.
type Request struct {
	User    string
	Channel string
	Turns   []llm.InputItem
}

// New creates a conversation loop from the config.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	return &Loop{
		client:    cfg.Client,
		registry:  cfg.Registry,
		memory:    cfg.Memory,
		usage:     cfg.Usage,
		bus:       cfg.Bus,
		model:     cfg.Model,
		maxRounds: maxRounds,
		logger:    logger,
	}
}

// Run answers one conversation turn and returns the model's final text
// reply. Tool failures never abort a run; only endpoint and memory
// failures do.
func (l *Loop) Run(ctx context.Context, req Request) (string, error) {
	requestID := uuid.NewString()
	start := time.Now()
	logger := l.logger.With("request_id", requestID, "user", req.User)

	userMemory, err := l.memory.Load(req.User)
	if err != nil {
		return "", fmt.Errorf("load user memory: %w", err)
	}

	// Tool handlers resolve the acting user from the context.
	ctx = tools.WithUser(ctx, req.User)

	logger.Info("request started", "turns", len(req.Turns))
	l.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestStart,
		Data: map[string]any{
			"request_id": requestID,
			"user":       req.User,
			"turns":      len(req.Turns),
		},
	})

	llmReq := &llm.Request{
		Model:        l.model,
		Instructions: prompts.SystemPrompt(time.Now(), userMemory),
		Input:        req.Turns,
		Tools:        l.registry.Payload(),
	}

	var totalIn, totalOut int
	for round := 1; ; round++ {
		resp, err := l.client.Respond(ctx, llmReq)
		if err != nil {
			return "", fmt.Errorf("completion round %d: %w", round, err)
		}

		totalIn += resp.Usage.InputTokens
		totalOut += resp.Usage.OutputTokens
		l.recordUsage(ctx, resp, req)

		calls := resp.FunctionCalls()
		logger.Debug("round complete",
			"round", round,
			"response_id", resp.ID,
			"tool_calls", len(calls),
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
		l.bus.Publish(events.Event{
			Source: events.SourceAgent,
			Kind:   events.KindRound,
			Data: map[string]any{
				"request_id": requestID,
				"round":      round,
				"tool_calls": len(calls),
				"tokens_in":  resp.Usage.InputTokens,
				"tokens_out": resp.Usage.OutputTokens,
			},
		})

		// Endpoint-side activity (hosted web search) carries no work
		// for us but is worth seeing in the logs.
		for _, item := range resp.SideChannel() {
			logger.Info("endpoint activity", "item_type", item.Type, "status", item.Status)
			l.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindSideChannel,
				Data:   map[string]any{"request_id": requestID, "item_type": item.Type},
			})
		}

		if len(calls) == 0 {
			reply := resp.OutputText()
			logger.Info("request complete",
				"rounds", round,
				"reply_len", len(reply),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			l.publishComplete(requestID, round, totalIn, totalOut, start)
			return reply, nil
		}

		if round >= l.maxRounds {
			logger.Warn("round limit reached", "rounds", round, "pending_calls", len(calls))
			l.publishComplete(requestID, round, totalIn, totalOut, start)
			return roundLimitReply, nil
		}

		outputs := make([]llm.InputItem, 0, len(calls))
		for _, call := range calls {
			l.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindToolCall,
				Data:   map[string]any{"request_id": requestID, "tool": call.Name, "call_id": call.CallID},
			})

			toolStart := time.Now()
			result := l.registry.Dispatch(ctx, call.Name, call.Arguments)
			outputs = append(outputs, llm.FunctionCallOutput(call.CallID, result))

			l.bus.Publish(events.Event{
				Source: events.SourceAgent,
				Kind:   events.KindToolDone,
				Data: map[string]any{
					"request_id":  requestID,
					"tool":        call.Name,
					"call_id":     call.CallID,
					"duration_ms": time.Since(toolStart).Milliseconds(),
					"result_len":  len(result),
				},
			})
		}

		// Follow-up rounds send only the new tool results; the endpoint
		// holds the rest of the conversation under the previous id.
		llmReq = &llm.Request{
			Model:              l.model,
			Input:              outputs,
			Tools:              l.registry.Payload(),
			PreviousResponseID: resp.ID,
		}
	}
}

func (l *Loop) recordUsage(ctx context.Context, resp *llm.Response, req Request) {
	if l.usage == nil {
		return
	}
	rec := usage.Record{
		ResponseID:   resp.ID,
		Channel:      req.Channel,
		User:         req.User,
		Model:        resp.Model,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	if err := l.usage.Record(ctx, rec); err != nil {
		// Accounting must never fail a conversation.
		l.logger.Warn("usage record failed", "error", err)
	}
}

func (l *Loop) publishComplete(requestID string, rounds, totalIn, totalOut int, start time.Time) {
	l.bus.Publish(events.Event{
		Source: events.SourceAgent,
		Kind:   events.KindRequestComplete,
		Data: map[string]any{
			"request_id":       requestID,
			"rounds":           rounds,
			"total_tokens_in":  totalIn,
			"total_tokens_out": totalOut,
			"elapsed_ms":       time.Since(start).Milliseconds(),
		},
	})
}
