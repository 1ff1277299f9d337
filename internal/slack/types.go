package slack

import "encoding/json"

// socketEnvelope is the outer frame of every Socket Mode message.
type socketEnvelope struct {
	Type                   string          `json:"type"`
	EnvelopeID             string          `json:"envelope_id,omitempty"`
	Payload                json.RawMessage `json:"payload,omitempty"`
	RetryAttempt           int             `json:"retry_attempt,omitempty"`
	AcceptsResponsePayload bool            `json:"accepts_response_payload,omitempty"`
	Reason                 string          `json:"reason,omitempty"` // set on disconnect frames
}

// socketAck acknowledges receipt of an envelope.
type socketAck struct {
	EnvelopeID string `json:"envelope_id"`
}

// eventsAPIPayload is the payload of an events_api envelope.
type eventsAPIPayload struct {
	Type   string `json:"type"`
	TeamID string `json:"team_id"`
	Event  Event  `json:"event"`
}

// Event is an Events API event: an @-mention or a message. The same
// shape doubles as a thread message in conversations.replies.
type Event struct {
	Type        string `json:"type,omitempty"`
	Subtype     string `json:"subtype,omitempty"`
	User        string `json:"user,omitempty"`
	BotID       string `json:"bot_id,omitempty"`
	Text        string `json:"text,omitempty"`
	Channel     string `json:"channel,omitempty"`
	ChannelType string `json:"channel_type,omitempty"`
	TS          string `json:"ts,omitempty"`
	ThreadTS    string `json:"thread_ts,omitempty"`
}

// apiResponse carries the fields common to every Web API reply.
type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Identity is the bot's own identity from auth.test.
type Identity struct {
	UserID string `json:"user_id"`
	User   string `json:"user"`
	Team   string `json:"team"`
}

type authTestResponse struct {
	apiResponse
	Identity
}

// userProfile holds the name fields we care about from users.info.
type userProfile struct {
	FirstName   string `json:"first_name"`
	DisplayName string `json:"display_name"`
	RealName    string `json:"real_name"`
}

type usersInfoResponse struct {
	apiResponse
	User struct {
		ID      string      `json:"id"`
		Profile userProfile `json:"profile"`
	} `json:"user"`
}

type conversationsRepliesResponse struct {
	apiResponse
	Messages         []Event `json:"messages"`
	HasMore          bool    `json:"has_more"`
	ResponseMetadata struct {
		NextCursor string `json:"next_cursor"`
	} `json:"response_metadata"`
}

type postMessageResponse struct {
	apiResponse
	TS string `json:"ts"`
}

type connectionsOpenResponse struct {
	apiResponse
	URL string `json:"url"`
}
