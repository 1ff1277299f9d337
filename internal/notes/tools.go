package notes

import (
	"context"
	"strings"

	"github.com/wrenware/scrivener/internal/tools"
)

// keyParam is the shared schema for the key argument used by every
// note tool.
func keyParam() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "The note key including extension (e.g. 'grocery_list.md', 'reminders.json'). No path separators.",
	}
}

// Tools returns the note tool definitions bound to the given store, in
// the order they are advertised to the model.
func Tools(store *Store) []*tools.Tool {
	return []*tools.Tool{
		{
			Name: "list_notes",
			Description: "List all saved notes by key (including their extensions). " +
				"Call this first when the user asks what's stored, or before reading a note " +
				"if you're not sure whether it exists.",
			Parameters: map[string]any{
				"type":                 "object",
				"properties":           map[string]any{},
				"required":             []string{},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				keys, err := store.List()
				if err != nil {
					return "", err
				}
				if len(keys) == 0 {
					return "No notes yet.", nil
				}
				return strings.Join(keys, "\n"), nil
			},
		},
		{
			Name: "read_note",
			Description: "Read the full contents of a saved note by key. " +
				"Use this when the user asks to see a list or recall something stored.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": keyParam(),
				},
				"required":             []string{"key"},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, err := tools.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				return store.Read(key)
			},
		},
		{
			Name: "write_note",
			Description: "Write or completely overwrite a note. " +
				"Choose the format and extension that best fits the data: " +
				".md for prose or bullet lists, .json for structured records, .jsonl for append-heavy logs. " +
				"For adding to an existing note, use append_to_note instead.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": keyParam(),
					"content": map[string]any{
						"type":        "string",
						"description": "The full content to write.",
					},
				},
				"required":             []string{"key", "content"},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, err := tools.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				content, err := tools.StringArg(args, "content")
				if err != nil {
					return "", err
				}
				return store.Write(key, content)
			},
		},
		{
			Name: "append_to_note",
			Description: "Append content to the end of a note. " +
				"Use this when adding to an existing list or log (e.g. 'add milk to grocery list', new JSONL record). " +
				"Creates the note if it doesn't exist yet.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": keyParam(),
					"content": map[string]any{
						"type":        "string",
						"description": "The content to append.",
					},
				},
				"required":             []string{"key", "content"},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, err := tools.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				content, err := tools.StringArg(args, "content")
				if err != nil {
					return "", err
				}
				return store.Append(key, content)
			},
		},
		{
			Name: "delete_note",
			Description: "Permanently delete a saved note by key. " +
				"Use only when the user explicitly asks to delete or remove a note. " +
				"If unsure of the exact key, call list_notes first.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": keyParam(),
				},
				"required":             []string{"key"},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, err := tools.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				return store.Delete(key)
			},
		},
		{
			Name: "edit_note",
			Description: "Replace an exact string in a note with new text. " +
				"Use this for targeted edits: removing a list item, updating a value, renaming something. " +
				"To delete text, pass an empty string for new_str. " +
				"If old_str is not found, read the note first to verify the exact contents.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key": keyParam(),
					"old_str": map[string]any{
						"type":        "string",
						"description": "The exact string to find and replace. Must match character-for-character.",
					},
					"new_str": map[string]any{
						"type":        "string",
						"description": "The string to replace it with. Pass empty string to delete.",
					},
				},
				"required":             []string{"key", "old_str", "new_str"},
				"additionalProperties": false,
			},
			Handler: func(ctx context.Context, args map[string]any) (string, error) {
				key, err := tools.StringArg(args, "key")
				if err != nil {
					return "", err
				}
				oldStr, err := tools.StringArg(args, "old_str")
				if err != nil {
					return "", err
				}
				newStr, err := tools.StringArg(args, "new_str")
				if err != nil {
					return "", err
				}
				return store.Edit(key, oldStr, newStr)
			},
		},
	}
}
