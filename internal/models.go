package internal

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Message type codes used by Cursor's conversation headers.
const (
	TypeUser      = 1
	TypeAssistant = 2
)

// Storage keys. ItemTable holds the per-workspace prompt/generation
// arrays; cursorDiskKV holds composer metadata and individual bubbles.
const (
	PromptsKey     = "aiService.prompts"
	GenerationsKey = "aiService.generations"

	composerPrefix = "composerData:"
	bubblePrefix   = "bubbleId:"
)

// PromptRecord is one element of the aiService.prompts array. Prompts
// carry no server timestamp.
type PromptRecord struct {
	Text        string `json:"text"`
	CommandType *int   `json:"commandType,omitempty"`
}

// GenerationRecord is one element of the aiService.generations array.
type GenerationRecord struct {
	UnixMs          int64  `json:"unixMs"`
	GenerationUUID  string `json:"generationUUID,omitempty"`
	Type            string `json:"type,omitempty"`
	TextDescription string `json:"textDescription"`
}

// SessionMetadata is an immutable snapshot of one composer, read once per
// retrieval call.
type SessionMetadata struct {
	ComposerID    string
	Name          string
	CreatedAt     int64 // ms
	LastUpdatedAt int64 // ms
	Headers       []MessageHeader
}

// MessageHeader identifies one bubble and its role; the header list
// defines iteration order for extraction.
type MessageHeader struct {
	BubbleID string `json:"bubbleId"`
	Type     int    `json:"type"`
}

// rawComposer mirrors the composerData JSON blob.
type rawComposer struct {
	ComposerID                  string          `json:"composerId"`
	Name                        string          `json:"name,omitempty"`
	CreatedAt                   int64           `json:"createdAt,omitempty"`
	LastUpdatedAt               int64           `json:"lastUpdatedAt,omitempty"`
	FullConversationHeadersOnly []MessageHeader `json:"fullConversationHeadersOnly,omitempty"`
}

// ParseSessionMetadata parses a composerData:<composerId> row.
func ParseSessionMetadata(key, value string) (SessionMetadata, error) {
	id, ok := strings.CutPrefix(key, composerPrefix)
	if !ok || id == "" {
		return SessionMetadata{}, &ParseError{Source: "cursorDiskKV", Key: key,
			Err: fmt.Errorf("invalid composer key format")}
	}

	var raw rawComposer
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return SessionMetadata{}, &ParseError{Source: "cursorDiskKV", Key: key, Err: err}
	}

	meta := SessionMetadata{
		ComposerID:    id,
		Name:          raw.Name,
		CreatedAt:     raw.CreatedAt,
		LastUpdatedAt: raw.LastUpdatedAt,
		Headers:       raw.FullConversationHeadersOnly,
	}
	if meta.LastUpdatedAt == 0 {
		meta.LastUpdatedAt = meta.CreatedAt
	}
	return meta, nil
}

// Intersects reports whether the session's lifetime overlaps the window.
func (m SessionMetadata) Intersects(w Window) bool {
	return m.CreatedAt <= w.EndMs && m.LastUpdatedAt >= w.StartMs
}

// BubbleContent is the text-bearing view of a raw bubble record. Raw
// record shapes vary by message kind; rather than scattering null checks
// through the pipeline, the distinction lives here as an explicit variant.
type BubbleContent struct {
	Kind string // "text", "thinking", "tool", "empty"
	Text string // non-empty only when Kind == "text"
}

// rawBubble mirrors the fields this pipeline cares about in a bubble blob.
// Thinking and tool payloads are parsed only to classify the record; their
// content is never surfaced.
type rawBubble struct {
	Text     string `json:"text,omitempty"`
	Thinking *struct {
		Text string `json:"text,omitempty"`
	} `json:"thinking,omitempty"`
	ToolFormerData json.RawMessage `json:"toolFormerData,omitempty"`
	Type           int             `json:"type,omitempty"`
}

// ParseBubbleContent classifies one bubbleId:<composerId>:<bubbleId> row.
// A record only materializes into output when it has a non-empty top-level
// text field; thinking and tool-call records classify as their own kinds
// with no text.
func ParseBubbleContent(key, value string) (BubbleContent, error) {
	var raw rawBubble
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return BubbleContent{}, &ParseError{Source: "cursorDiskKV", Key: key, Err: err}
	}

	switch {
	case strings.TrimSpace(raw.Text) != "":
		return BubbleContent{Kind: "text", Text: raw.Text}, nil
	case raw.Thinking != nil && raw.Thinking.Text != "":
		return BubbleContent{Kind: "thinking"}, nil
	case len(raw.ToolFormerData) > 0:
		return BubbleContent{Kind: "tool"}, nil
	default:
		return BubbleContent{Kind: "empty"}, nil
	}
}

// bubbleKeySuffix extracts the composer and bubble ids from a bubble key.
func bubbleKeySuffix(key string) (composerID, bubbleID string, ok bool) {
	rest, found := strings.CutPrefix(key, bubblePrefix)
	if !found {
		return "", "", false
	}
	composerID, bubbleID, found = strings.Cut(rest, ":")
	if !found || composerID == "" || bubbleID == "" {
		return "", "", false
	}
	return composerID, bubbleID, true
}

// Message is the uniform reconstructed message shape used across the
// pipeline. Timestamp and Type stay nil for prompts, which carry neither.
type Message struct {
	Role        string  `json:"role"`
	Content     string  `json:"content"`
	Timestamp   *int64  `json:"timestamp"` // ms
	Type        *string `json:"type"`
	SessionName string  `json:"sessionName,omitempty"`
	ComposerID  string  `json:"composerId,omitempty"`
	BubbleID    string  `json:"bubbleId,omitempty"`
}

// Time returns the message timestamp as a time.Time, zero when absent.
func (m Message) Time() time.Time {
	if m.Timestamp == nil {
		return time.Time{}
	}
	return time.UnixMilli(*m.Timestamp)
}
