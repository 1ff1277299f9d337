package slack

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wrenware/scrivener/internal/agent"
	"github.com/wrenware/scrivener/internal/events"
	"github.com/wrenware/scrivener/internal/llm"
	"github.com/wrenware/scrivener/internal/mrkdwn"
)

// AgentRunner abstracts the conversation loop for testability. The real
// implementation is *agent.Loop.
type AgentRunner interface {
	Run(ctx context.Context, req agent.Request) (string, error)
}

// WebAPI is the slice of the Web API client the bridge needs.
type WebAPI interface {
	AuthTest(ctx context.Context) (*Identity, error)
	UserFirstName(ctx context.Context, userID string) (string, error)
	ConversationsReplies(ctx context.Context, channel, threadTS string) ([]Event, error)
	PostMessage(ctx context.Context, channel, threadTS, text string) (string, error)
}

// handleTimeout bounds how long a single inbound message may be
// processed (thread fetch + agent loop + reply post).
const handleTimeout = 5 * time.Minute

// rateWindow is the sliding window for per-sender rate limiting.
const rateWindow = time.Minute

// cleanupInterval controls how often stale rate-limit entries are
// evicted.
const cleanupInterval = 10 * time.Minute

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	API       WebAPI
	Events    <-chan Event
	Runner    AgentRunner
	Bus       *events.Bus
	Logger    *slog.Logger
	RateLimit int // per sender per minute; 0 = unlimited

	UserCacheSize int
	UserCacheTTL  time.Duration
}

// Bridge receives Slack events, routes them through the conversation
// loop with the full thread as context, and posts replies back into the
// thread.
type Bridge struct {
	api       WebAPI
	eventsCh  <-chan Event
	runner    AgentRunner
	bus       *events.Bus
	logger    *slog.Logger
	rateLimit int
	names     *userCache

	botUserID string

	mu          sync.Mutex
	senderTimes map[string][]time.Time
	lastCleanup time.Time
}

// NewBridge creates a Slack message bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		api:         cfg.API,
		eventsCh:    cfg.Events,
		runner:      cfg.Runner,
		bus:         cfg.Bus,
		logger:      logger.With("component", "bridge"),
		rateLimit:   cfg.RateLimit,
		names:       newUserCache(cfg.UserCacheSize, cfg.UserCacheTTL),
		senderTimes: make(map[string][]time.Time),
	}
}

// Start resolves the bot identity and processes events until ctx is
// cancelled or the event channel closes.
func (b *Bridge) Start(ctx context.Context) error {
	ident, err := b.api.AuthTest(ctx)
	if err != nil {
		return fmt.Errorf("resolve bot identity: %w", err)
	}
	b.botUserID = ident.UserID
	b.logger.Info("slack bridge started", "bot_user", ident.User, "bot_user_id", ident.UserID)

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("slack bridge shutting down")
			return ctx.Err()
		case ev, ok := <-b.eventsCh:
			if !ok {
				b.logger.Info("event channel closed, bridge stopping")
				return nil
			}

			if !b.shouldHandle(ev) {
				continue
			}
			if !b.allowSender(ev.User) {
				b.logger.Warn("message rate-limited", "sender", ev.User)
				continue
			}

			b.handleEvent(ctx, ev)
		}
	}
}

// shouldHandle filters events down to the ones that warrant a reply:
// @-mentions anywhere, and plain messages only in DMs. Join messages,
// edits, and the bot's own output are dropped.
func (b *Bridge) shouldHandle(ev Event) bool {
	if ev.Subtype != "" || ev.BotID != "" {
		return false
	}
	if ev.User == "" || ev.User == b.botUserID {
		return false
	}
	if strings.TrimSpace(ev.Text) == "" {
		return false
	}
	switch ev.Type {
	case "app_mention":
		return true
	case "message":
		return ev.ChannelType == "im"
	}
	return false
}

// handleEvent processes one inbound message: fetch the thread, run the
// conversation loop, post the reply into the thread.
func (b *Bridge) handleEvent(ctx context.Context, ev Event) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	threadTS := ev.ThreadTS
	if threadTS == "" {
		threadTS = ev.TS
	}

	b.logger.Info("message received",
		"sender", ev.User,
		"channel", ev.Channel,
		"thread_ts", threadTS,
		"message_len", len(ev.Text),
	)
	b.bus.Publish(events.Event{
		Source: events.SourceSlack,
		Kind:   events.KindMessageReceived,
		Data: map[string]any{
			"sender":      ev.User,
			"channel":     ev.Channel,
			"thread_ts":   threadTS,
			"message_len": len(ev.Text),
		},
	})

	turns, err := b.threadTurns(ctx, ev.Channel, threadTS)
	if err != nil {
		b.logger.Error("thread fetch failed",
			"channel", ev.Channel,
			"thread_ts", threadTS,
			"error", err,
		)
		return
	}

	reply, err := b.runner.Run(ctx, agent.Request{
		User:    ev.User,
		Channel: ev.Channel,
		Turns:   turns,
	})
	if err != nil {
		b.logger.Error("agent run failed",
			"sender", ev.User,
			"channel", ev.Channel,
			"error", err,
		)
		return
	}
	if reply == "" {
		return
	}

	if _, err := b.api.PostMessage(ctx, ev.Channel, threadTS, mrkdwn.Convert(reply)); err != nil {
		b.logger.Error("reply post failed",
			"channel", ev.Channel,
			"thread_ts", threadTS,
			"error", err,
		)
		return
	}

	b.logger.Info("reply sent",
		"sender", ev.User,
		"channel", ev.Channel,
		"thread_ts", threadTS,
		"reply_len", len(reply),
	)
	b.bus.Publish(events.Event{
		Source: events.SourceSlack,
		Kind:   events.KindReplySent,
		Data: map[string]any{
			"sender":    ev.User,
			"channel":   ev.Channel,
			"thread_ts": threadTS,
			"reply_len": len(reply),
		},
	})
}

// threadTurns converts a Slack thread into conversation input items.
// The bot's own messages become assistant turns; everyone else's become
// user turns prefixed with the sender's first name.
func (b *Bridge) threadTurns(ctx context.Context, channel, threadTS string) ([]llm.InputItem, error) {
	msgs, err := b.api.ConversationsReplies(ctx, channel, threadTS)
	if err != nil {
		return nil, err
	}

	var turns []llm.InputItem
	for _, msg := range msgs {
		if msg.Subtype != "" {
			continue
		}

		text := strings.TrimSpace(strings.ReplaceAll(msg.Text, "<@"+b.botUserID+">", ""))
		if text == "" {
			continue
		}

		if msg.User == b.botUserID || msg.BotID != "" {
			turns = append(turns, llm.AssistantMessage(text))
			continue
		}
		name := b.displayName(ctx, msg.User)
		turns = append(turns, llm.UserMessage(fmt.Sprintf("[%s]: %s", name, text)))
	}
	return turns, nil
}

// displayName resolves a user's first name through the bounded cache.
// Lookup failures fall back to the raw id rather than failing the
// request.
func (b *Bridge) displayName(ctx context.Context, userID string) string {
	if name, ok := b.names.get(userID); ok {
		return name
	}

	name, err := b.api.UserFirstName(ctx, userID)
	if err != nil {
		b.logger.Warn("user lookup failed", "user", userID, "error", err)
		return userID
	}
	b.names.put(userID, name)
	return name
}

// allowSender checks whether the sender is within the per-minute rate
// limit. Returns true if the message should be processed.
func (b *Bridge) allowSender(senderID string) bool {
	if b.rateLimit <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-rateWindow)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeCleanupLocked(now)

	timestamps := b.senderTimes[senderID]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= b.rateLimit {
		b.senderTimes[senderID] = valid
		return false
	}

	b.senderTimes[senderID] = append(valid, now)
	return true
}

// maybeCleanupLocked evicts stale sender entries. Must be called with
// b.mu held.
func (b *Bridge) maybeCleanupLocked(now time.Time) {
	if now.Sub(b.lastCleanup) < cleanupInterval {
		return
	}
	b.lastCleanup = now

	cutoff := now.Add(-2 * rateWindow)
	for sender, timestamps := range b.senderTimes {
		if len(timestamps) == 0 {
			delete(b.senderTimes, sender)
			continue
		}
		if timestamps[len(timestamps)-1].Before(cutoff) {
			delete(b.senderTimes, sender)
		}
	}
}
