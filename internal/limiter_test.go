package internal

import (
	"fmt"
	"testing"
)

func makeHistory(userCount, assistantCount int) []Message {
	var history []Message
	for i := 0; i < userCount+assistantCount; i++ {
		role := "user"
		n := i
		if i >= userCount {
			role = "assistant"
			n = i - userCount
		}
		history = append(history, Message{
			Role:    role,
			Content: fmt.Sprintf("%s %d", role, n),
		})
	}
	return history
}

func TestLimitCapsEachRoleIndependently(t *testing.T) {
	history := makeHistory(10, 4)

	got, meta := Limit(history, 3, 5)

	users, assistants := 0, 0
	for _, msg := range got {
		switch msg.Role {
		case "user":
			users++
		case "assistant":
			assistants++
		}
	}
	if users != 3 {
		t.Errorf("kept %d user messages, want 3", users)
	}
	if assistants != 4 {
		t.Errorf("kept %d assistant messages, want 4 (under the cap)", assistants)
	}
	if meta == nil {
		t.Fatal("truncation happened but meta is nil")
	}
	if !meta.UserTruncated || meta.UserRemoved != 7 {
		t.Errorf("user meta = %+v", meta)
	}
	if meta.AssistantTruncated {
		t.Error("assistant reported truncated though under cap")
	}
}

func TestLimitKeepsMostRecentSuffixPerRole(t *testing.T) {
	history := makeHistory(5, 0)

	got, _ := Limit(history, 2, 2)

	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	// The kept subset is the most-recent suffix of that role.
	if got[0].Content != "user 3" || got[1].Content != "user 4" {
		t.Errorf("kept %q, %q; want the last two", got[0].Content, got[1].Content)
	}
}

func TestLimitPreservesInterleaving(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "q1"},
		{Role: "assistant", Content: "a1"},
		{Role: "user", Content: "q2"},
		{Role: "assistant", Content: "a2"},
		{Role: "user", Content: "q3"},
	}

	got, _ := Limit(history, 2, 2)

	// Only the user role exceeds its cap, so q1 is dropped and both
	// assistant messages survive in place.
	want := []string{"a1", "q2", "a2", "q3"}
	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	for i, content := range want {
		if got[i].Content != content {
			t.Errorf("position %d = %q, want %q (interleaving broken)", i, got[i].Content, content)
		}
	}
}

func TestLimitNoTruncationEmitsNoMeta(t *testing.T) {
	history := makeHistory(5, 5)

	got, meta := Limit(history, 200, 200)

	if meta != nil {
		t.Errorf("meta = %+v, want nil when nothing was truncated", meta)
	}
	if len(got) != 10 {
		t.Errorf("got %d messages, want all 10", len(got))
	}
}

func TestLimitUnknownRolesPassThrough(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "u1"},
		{Role: "tool", Content: "legacy tool record"},
		{Role: "", Content: "role went missing"},
		{Role: "user", Content: "u2"},
	}

	got, _ := Limit(history, 1, 1)

	kept := map[string]bool{}
	for _, msg := range got {
		kept[msg.Content] = true
	}
	if !kept["legacy tool record"] || !kept["role went missing"] {
		t.Error("unknown-role messages were dropped; they must pass through unfiltered")
	}
	if kept["u1"] {
		t.Error("oldest user message survived a cap of 1")
	}
	if !kept["u2"] {
		t.Error("most recent user message dropped")
	}
}

func TestLimitZeroUsesDefaults(t *testing.T) {
	history := makeHistory(250, 250)

	got, meta := Limit(history, 0, 0)

	if len(got) != DefaultMaxUserMessages+DefaultMaxAssistantMessages {
		t.Errorf("got %d messages, want %d", len(got), DefaultMaxUserMessages+DefaultMaxAssistantMessages)
	}
	if meta == nil || meta.UserRemoved != 50 || meta.AssistantRemoved != 50 {
		t.Errorf("meta = %+v", meta)
	}
}
