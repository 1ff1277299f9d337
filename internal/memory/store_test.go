package memory

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/wrenware/scrivener/internal/tools"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "memory"), nil)
}

func TestSave_SeedsHeaderOnce(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Save("U123", "Likes tea")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if got != "Saved: Likes tea" {
		t.Errorf("Save = %q", got)
	}

	if _, err := s.Save("U123", "Has two cats"); err != nil {
		t.Fatal(err)
	}

	content, err := s.Load("U123")
	if err != nil {
		t.Fatal(err)
	}
	want := "# User Memory\n\n- Likes tea\n- Has two cats\n"
	if content != want {
		t.Errorf("Load = %q, want %q", content, want)
	}
	if strings.Count(content, "# User Memory") != 1 {
		t.Errorf("header written more than once: %q", content)
	}
}

func TestSave_UsersAreIsolated(t *testing.T) {
	s := newTestStore(t)

	s.Save("alice", "Vegetarian")
	s.Save("bob", "Allergic to peanuts")

	got, _ := s.Load("alice")
	if strings.Contains(got, "peanuts") {
		t.Errorf("alice's memory contains bob's fact: %q", got)
	}
	got, _ = s.Load("bob")
	if strings.Contains(got, "Vegetarian") {
		t.Errorf("bob's memory contains alice's fact: %q", got)
	}
}

func TestLoad_EmptyForNewUser(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Load("stranger")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != "" {
		t.Errorf("Load = %q, want empty", got)
	}
}

func TestValidateUser(t *testing.T) {
	tests := []struct {
		user    string
		wantErr bool
	}{
		{"U0123ABCD", false},
		{"alice", false},
		{"", true},
		{"../other", true},
		{"a/b", true},
		{`a\b`, true},
		{".", true},
	}

	for _, tt := range tests {
		err := ValidateUser(tt.user)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateUser(%q) error = %v, wantErr %v", tt.user, err, tt.wantErr)
		}
	}
}

func TestSave_ConcurrentSameUser(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Save("shared", "fact"); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Load("shared")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(got, "- fact\n"); n != 20 {
		t.Errorf("got %d facts, want 20", n)
	}
	if strings.Count(got, "# User Memory") != 1 {
		t.Errorf("header corrupted under concurrency: %q", got)
	}
}

func TestSaveTool(t *testing.T) {
	s := newTestStore(t)
	r := tools.NewRegistry(nil)
	r.Register(SaveTool(s))

	ctx := tools.WithUser(context.Background(), "U123")
	got := r.Dispatch(ctx, "save_memory", `{"fact":"Likes tea"}`)
	if got != "Saved: Likes tea" {
		t.Errorf("save_memory = %q", got)
	}

	content, _ := s.Load("U123")
	if !strings.Contains(content, "- Likes tea\n") {
		t.Errorf("memory file missing fact: %q", content)
	}
}

func TestSaveTool_NoUserIdentity(t *testing.T) {
	s := newTestStore(t)
	r := tools.NewRegistry(nil)
	r.Register(SaveTool(s))

	got := r.Dispatch(context.Background(), "save_memory", `{"fact":"x"}`)
	if !strings.HasPrefix(got, "Error:") || !strings.Contains(got, "user identity") {
		t.Errorf("save_memory without user = %q, want identity error text", got)
	}
}
