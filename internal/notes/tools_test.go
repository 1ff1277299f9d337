package notes

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wrenware/scrivener/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "notes"), nil)
	r := tools.NewRegistry(nil)
	r.RegisterAll(Tools(store))
	return r
}

func TestNoteTools_Registration(t *testing.T) {
	r := newTestRegistry(t)

	want := []string{
		"list_notes", "read_note", "write_note",
		"append_to_note", "delete_note", "edit_note",
	}
	got := r.Names()
	if len(got) != len(want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNoteTools_WriteReadList(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	got := r.Dispatch(ctx, "write_note", `{"key":"grocery_list.md","content":"- milk\n- eggs"}`)
	if got != "Saved 'grocery_list.md'." {
		t.Errorf("write_note = %q", got)
	}

	got = r.Dispatch(ctx, "read_note", `{"key":"grocery_list.md"}`)
	if got != "- milk\n- eggs" {
		t.Errorf("read_note = %q", got)
	}

	got = r.Dispatch(ctx, "list_notes", `{}`)
	if got != "grocery_list.md" {
		t.Errorf("list_notes = %q", got)
	}
}

func TestNoteTools_ListEmpty(t *testing.T) {
	r := newTestRegistry(t)

	got := r.Dispatch(context.Background(), "list_notes", `{}`)
	if got != "No notes yet." {
		t.Errorf("list_notes = %q", got)
	}
}

func TestNoteTools_AppendAndEdit(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, "write_note", `{"key":"list.md","content":"milk"}`)

	got := r.Dispatch(ctx, "append_to_note", `{"key":"list.md","content":"eggs"}`)
	if got != "Appended to 'list.md'." {
		t.Errorf("append_to_note = %q", got)
	}

	got = r.Dispatch(ctx, "edit_note", `{"key":"list.md","old_str":"milk","new_str":"oat milk"}`)
	if got != "Edited 'list.md'." {
		t.Errorf("edit_note = %q", got)
	}

	got = r.Dispatch(ctx, "read_note", `{"key":"list.md"}`)
	if got != "oat milk\neggs" {
		t.Errorf("read_note = %q", got)
	}
}

func TestNoteTools_Delete(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	r.Dispatch(ctx, "write_note", `{"key":"temp.md","content":"x"}`)

	got := r.Dispatch(ctx, "delete_note", `{"key":"temp.md"}`)
	if got != "Deleted 'temp.md'." {
		t.Errorf("delete_note = %q", got)
	}

	got = r.Dispatch(ctx, "read_note", `{"key":"temp.md"}`)
	if got != "No note found for 'temp.md'." {
		t.Errorf("read_note after delete = %q", got)
	}
}

func TestNoteTools_InvalidKeyBecomesErrorText(t *testing.T) {
	r := newTestRegistry(t)

	got := r.Dispatch(context.Background(), "read_note", `{"key":"../etc/passwd"}`)
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("read_note with traversal key = %q, want Error: text", got)
	}
}

func TestNoteTools_MissingArgument(t *testing.T) {
	r := newTestRegistry(t)

	got := r.Dispatch(context.Background(), "write_note", `{"key":"a.md"}`)
	if !strings.Contains(got, `missing required argument "content"`) {
		t.Errorf("write_note = %q, want missing-argument text", got)
	}
}
