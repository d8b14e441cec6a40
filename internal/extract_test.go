package internal

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/iksnae/cursor-journal/testutil"
)

func TestExtractPrompts(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")
	testutil.SeedPrompts(t, path, "fix the login bug", "now add a test for it")

	got, err := ExtractPrompts(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractPrompts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d prompts, want 2", len(got))
	}
	if got[0].Text != "fix the login bug" {
		t.Errorf("prompt[0].Text = %q", got[0].Text)
	}
}

func TestExtractPromptsSkipsCorruptElements(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")
	testutil.SeedItem(t, path, PromptsKey,
		`[{"text":"good one"}, "not an object at all", {"text":"another good one"}]`)

	got, err := ExtractPrompts(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractPrompts() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d prompts, want 2 (corrupt element skipped)", len(got))
	}
}

func TestExtractNonArrayPayloadIsEmpty(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")
	testutil.SeedItem(t, path, GenerationsKey, `{"oops": "an object, not an array"}`)

	got, err := ExtractGenerations(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractGenerations() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d generations, want 0 for non-array payload", len(got))
	}
}

func TestExtractMissingKeyIsEmpty(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")

	got, err := ExtractPrompts(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractPrompts() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d prompts, want 0", len(got))
	}
}

func TestExtractPropagatesQueryLayerErrors(t *testing.T) {
	path := testutil.CreateEmptySchemaStore(t, t.TempDir(), "state.vscdb")

	_, err := ExtractPrompts(context.Background(), path)
	var schemaErr *SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("want SchemaError to propagate unchanged, got %T %v", err, err)
	}
}

func TestExtractGenerations(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")
	testutil.SeedGenerations(t, path,
		testutil.Generation{UnixMs: 1_700_000_000_000, Description: "Refactored the session provider"},
		testutil.Generation{UnixMs: 1_700_000_100_000, Description: "Added tie-break ordering", Type: "composer"},
	)

	got, err := ExtractGenerations(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractGenerations() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d generations, want 2", len(got))
	}
	if got[0].UnixMs != 1_700_000_000_000 {
		t.Errorf("UnixMs = %d", got[0].UnixMs)
	}
	if got[1].TextDescription != "Added tie-break ordering" {
		t.Errorf("TextDescription = %q", got[1].TextDescription)
	}
}

// A store with 97 user-only records and no generations must come through
// extraction and reconstruction as 97 user messages exactly.
func TestUserOnlyStoreScenario(t *testing.T) {
	path := testutil.CreateStoreFixture(t, t.TempDir(), "state.vscdb")
	texts := make([]string, 97)
	for i := range texts {
		texts[i] = fmt.Sprintf("prompt number %d", i)
	}
	testutil.SeedPrompts(t, path, texts...)

	prompts, err := ExtractPrompts(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractPrompts() error = %v", err)
	}
	generations, err := ExtractGenerations(context.Background(), path)
	if err != nil {
		t.Fatalf("ExtractGenerations() error = %v", err)
	}

	result := Reconstruct(prompts, generations)
	if len(result.Messages) != 97 {
		t.Fatalf("got %d messages, want 97", len(result.Messages))
	}
	for i, msg := range result.Messages {
		if msg.Role != "user" {
			t.Fatalf("message %d role = %q, want user", i, msg.Role)
		}
	}
}
