package memory

import (
	"context"
	"fmt"

	"github.com/wrenware/scrivener/internal/tools"
)

// SaveTool returns the save_memory tool bound to the given store. The
// target user comes from the request context, not from the model's
// arguments, so the model can never write to another user's memory.
func SaveTool(store *Store) *tools.Tool {
	return &tools.Tool{
		Name: "save_memory",
		Description: "Save a single durable fact about the current user to long-term memory " +
			"(e.g. 'Prefers metric units', 'Partner's name is Sam'). " +
			"Use this when the user shares a lasting preference or personal detail, " +
			"not for transient conversation state. One concise fact per call.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"fact": map[string]any{
					"type":        "string",
					"description": "The fact to remember, phrased as a short standalone statement.",
				},
			},
			"required":             []string{"fact"},
			"additionalProperties": false,
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			fact, err := tools.StringArg(args, "fact")
			if err != nil {
				return "", err
			}
			user := tools.UserFromContext(ctx)
			if user == "" {
				return "", fmt.Errorf("no user identity on request")
			}
			return store.Save(user, fact)
		},
	}
}
