package llm

import "context"

// Client is the interface the conversation loop depends on.
type Client interface {
	// Respond sends a completion request and returns the response.
	Respond(ctx context.Context, req *Request) (*Response, error)

	// Ping checks if the endpoint is reachable with valid credentials.
	Ping(ctx context.Context) error
}
