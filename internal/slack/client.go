// Package slack provides the Slack integration: a Web API client, a
// Socket Mode event stream, and the bridge that turns thread messages
// into conversation requests.
package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wrenware/scrivener/internal/httpkit"
)

const defaultAPIURL = "https://slack.com/api"

// Client is a Slack Web API client. The bot token authenticates normal
// calls; the app token is only used for connections.open.
type Client struct {
	botToken   string
	appToken   string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Web API client. baseURL overrides the endpoint
// for tests; pass "" for the public API.
func NewClient(botToken, appToken, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultAPIURL
	}
	return &Client{
		botToken:   botToken,
		appToken:   appToken,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		logger:     logger.With("component", "slack"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
	}
}

// resultErr converts a non-ok API envelope into an error.
func (r *apiResponse) resultErr(method string) error {
	if !r.OK {
		return fmt.Errorf("slack %s: %s", method, r.Error)
	}
	return nil
}

// call POSTs a form-encoded Web API request and decodes the JSON reply.
func (c *Client) call(ctx context.Context, method, token string, params url.Values, out any) error {
	body := ""
	if params != nil {
		body = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/"+method, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		return fmt.Errorf("slack %s: status %d: %s", method, resp.StatusCode, errBody)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("slack %s: decode response: %w", method, err)
	}
	return nil
}

// AuthTest returns the bot's own identity. The bridge uses the user id
// to strip mentions and skip the bot's own messages.
func (c *Client) AuthTest(ctx context.Context) (*Identity, error) {
	var resp authTestResponse
	if err := c.call(ctx, "auth.test", c.botToken, nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.resultErr("auth.test"); err != nil {
		return nil, err
	}
	return &resp.Identity, nil
}

// UserFirstName looks up a user's first name, lowercased, falling back
// through display name and real name to the raw id.
func (c *Client) UserFirstName(ctx context.Context, userID string) (string, error) {
	var resp usersInfoResponse
	params := url.Values{"user": {userID}}
	if err := c.call(ctx, "users.info", c.botToken, params, &resp); err != nil {
		return "", err
	}
	if err := resp.resultErr("users.info"); err != nil {
		return "", err
	}

	name := strings.TrimSpace(resp.User.Profile.FirstName)
	if name == "" {
		name = resp.User.Profile.DisplayName
	}
	if name == "" {
		name = resp.User.Profile.RealName
	}
	if name == "" {
		name = userID
	}
	return strings.ToLower(name), nil
}

// ConversationsReplies fetches all messages in a thread, following
// pagination cursors until the thread is exhausted.
func (c *Client) ConversationsReplies(ctx context.Context, channel, threadTS string) ([]Event, error) {
	var all []Event
	cursor := ""
	for {
		params := url.Values{
			"channel": {channel},
			"ts":      {threadTS},
			"limit":   {"200"},
		}
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp conversationsRepliesResponse
		if err := c.call(ctx, "conversations.replies", c.botToken, params, &resp); err != nil {
			return nil, err
		}
		if err := resp.resultErr("conversations.replies"); err != nil {
			return nil, err
		}

		all = append(all, resp.Messages...)
		if !resp.HasMore || resp.ResponseMetadata.NextCursor == "" {
			return all, nil
		}
		cursor = resp.ResponseMetadata.NextCursor
	}
}

// PostMessage posts text into a channel, threaded under threadTS when
// non-empty. Returns the posted message's timestamp.
func (c *Client) PostMessage(ctx context.Context, channel, threadTS, text string) (string, error) {
	params := url.Values{
		"channel": {channel},
		"text":    {text},
	}
	if threadTS != "" {
		params.Set("thread_ts", threadTS)
	}

	var resp postMessageResponse
	if err := c.call(ctx, "chat.postMessage", c.botToken, params, &resp); err != nil {
		return "", err
	}
	if err := resp.resultErr("chat.postMessage"); err != nil {
		return "", err
	}
	return resp.TS, nil
}

// ConnectionsOpen requests a Socket Mode websocket URL using the app
// token.
func (c *Client) ConnectionsOpen(ctx context.Context) (string, error) {
	var resp connectionsOpenResponse
	if err := c.call(ctx, "apps.connections.open", c.appToken, nil, &resp); err != nil {
		return "", err
	}
	if err := resp.resultErr("apps.connections.open"); err != nil {
		return "", err
	}
	return resp.URL, nil
}
