package slack

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// socketReadLimit bounds a single Socket Mode frame.
	socketReadLimit = 1 << 20

	reconnectMin = time.Second
	reconnectMax = 30 * time.Second
)

// SocketClient maintains a Socket Mode connection: it requests a
// websocket URL via the Web API, reads event envelopes, acknowledges
// them, and pushes message events to a channel. Disconnects trigger
// reconnection with backoff until the context is cancelled.
type SocketClient struct {
	api    *Client
	logger *slog.Logger
	dialer *websocket.Dialer
	events chan Event
}

// NewSocketClient creates a Socket Mode client on top of the Web API
// client.
func NewSocketClient(api *Client, logger *slog.Logger) *SocketClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketClient{
		api:    api,
		logger: logger.With("component", "socket"),
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
		events: make(chan Event, 64),
	}
}

// Events returns the channel of inbound message events. The channel is
// closed when Run returns.
func (s *SocketClient) Events() <-chan Event {
	return s.events
}

// Run connects and reads until ctx is cancelled. Each disconnect or
// read failure starts a fresh connection after a backoff.
func (s *SocketClient) Run(ctx context.Context) error {
	defer close(s.events)

	backoff := reconnectMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.runConn(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Warn("socket connection ended", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// runConn handles one websocket connection from dial to failure.
func (s *SocketClient) runConn(ctx context.Context) error {
	wsURL, err := s.api.ConnectionsOpen(ctx)
	if err != nil {
		return err
	}

	conn, _, err := s.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetReadLimit(socketReadLimit)

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var env socketEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("malformed socket envelope", "error", err)
			continue
		}

		switch env.Type {
		case "hello":
			s.logger.Info("socket mode connected")

		case "disconnect":
			// Slack rotates connections periodically; reconnect quietly.
			s.logger.Info("socket mode disconnect requested", "reason", env.Reason)
			return nil

		case "events_api":
			s.ack(conn, env.EnvelopeID)
			s.deliver(env)

		default:
			// Interactive payloads, slash commands. Ack so Slack does
			// not redeliver; nothing consumes them here.
			s.ack(conn, env.EnvelopeID)
			s.logger.Debug("ignoring socket envelope", "type", env.Type)
		}
	}
}

// ack acknowledges an envelope. Best effort: a failed ack means Slack
// redelivers, which the bridge tolerates.
func (s *SocketClient) ack(conn *websocket.Conn, envelopeID string) {
	if envelopeID == "" {
		return
	}
	if err := conn.WriteJSON(socketAck{EnvelopeID: envelopeID}); err != nil {
		s.logger.Warn("socket ack failed", "envelope_id", envelopeID, "error", err)
	}
}

// deliver parses an events_api envelope and pushes message events to
// the channel.
func (s *SocketClient) deliver(env socketEnvelope) {
	var payload eventsAPIPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		s.logger.Warn("malformed events_api payload", "error", err)
		return
	}

	ev := payload.Event
	if ev.Type != "message" && ev.Type != "app_mention" {
		s.logger.Debug("ignoring event", "type", ev.Type)
		return
	}
	if env.RetryAttempt > 0 {
		s.logger.Debug("redelivered event", "attempt", env.RetryAttempt, "ts", ev.TS)
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event channel full, dropping event",
			"channel", ev.Channel,
			"ts", ev.TS,
		)
	}
}
