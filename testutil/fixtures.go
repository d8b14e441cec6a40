package testutil

import (
	"encoding/json"
	"fmt"
	"testing"
)

// SessionFixture describes one composer session to seed into a store.
type SessionFixture struct {
	ComposerID    string
	Name          string
	CreatedAt     int64 // ms
	LastUpdatedAt int64 // ms
	Bubbles       []BubbleFixture
}

// BubbleFixture describes one message bubble within a session fixture.
type BubbleFixture struct {
	BubbleID string
	Type     int    // 1=user, 2=assistant
	Text     string // empty means a thinking-style record with no text
}

// SeedSession writes a composerData row plus its bubbles into the store
// at path, matching Cursor's key layout.
func SeedSession(t *testing.T, path string, s SessionFixture) {
	t.Helper()

	headers := make([]map[string]any, 0, len(s.Bubbles))
	for _, b := range s.Bubbles {
		headers = append(headers, map[string]any{"bubbleId": b.BubbleID, "type": b.Type})
	}
	composer, err := json.Marshal(map[string]any{
		"composerId":                  s.ComposerID,
		"name":                        s.Name,
		"createdAt":                   s.CreatedAt,
		"lastUpdatedAt":               s.LastUpdatedAt,
		"fullConversationHeadersOnly": headers,
	})
	if err != nil {
		t.Fatalf("failed to marshal composer fixture: %v", err)
	}
	SeedKV(t, path, "composerData:"+s.ComposerID, string(composer))

	for _, b := range s.Bubbles {
		body := map[string]any{"type": b.Type}
		if b.Text != "" {
			body["text"] = b.Text
		} else {
			body["thinking"] = map[string]any{"text": "internal reasoning"}
		}
		bubble, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal bubble fixture: %v", err)
		}
		SeedKV(t, path, fmt.Sprintf("bubbleId:%s:%s", s.ComposerID, b.BubbleID), string(bubble))
	}
}

// SeedPrompts writes an aiService.prompts array into the store at path.
func SeedPrompts(t *testing.T, path string, texts ...string) {
	t.Helper()
	records := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		records = append(records, map[string]any{"text": text, "commandType": 4})
	}
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("failed to marshal prompts fixture: %v", err)
	}
	SeedItem(t, path, "aiService.prompts", string(data))
}

// Generation pairs a description with its server timestamp for seeding.
type Generation struct {
	UnixMs      int64
	Description string
	Type        string
}

// SeedGenerations writes an aiService.generations array into the store.
func SeedGenerations(t *testing.T, path string, gens ...Generation) {
	t.Helper()
	records := make([]map[string]any, 0, len(gens))
	for _, g := range gens {
		genType := g.Type
		if genType == "" {
			genType = "composer"
		}
		records = append(records, map[string]any{
			"unixMs":          g.UnixMs,
			"textDescription": g.Description,
			"type":            genType,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatalf("failed to marshal generations fixture: %v", err)
	}
	SeedItem(t, path, "aiService.generations", string(data))
}
