package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/iksnae/cursor-journal/internal/ai"
)

// BoundaryDecision is the AI's judgement of where this commit's work
// begins in the candidate list. Transient: produced once per filtering
// call and discarded after use.
type BoundaryDecision struct {
	BubbleID   string `json:"bubbleId"`
	Confidence int    `json:"confidence"` // 1..10
	Reasoning  string `json:"reasoning"`
}

// GitContext is the best-effort surrounding context for the filter prompt.
type GitContext struct {
	// PreviousJournalEntry is the journal text generated for the prior
	// commit, when the caller has it. Empty is fine.
	PreviousJournalEntry string
}

// StreamlinedMessage is the caller-facing message shape with internal
// bookkeeping fields (bubble id, timestamp, composer id) stripped.
type StreamlinedMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	SessionName string `json:"sessionName,omitempty"`
}

// BoundaryFilter trims an oversized candidate list down to the messages
// that belong to one commit, using an AI capability with a conservative
// fallback.
type BoundaryFilter struct {
	Invoker    ai.Invoker
	Policy     FilterPolicy
	Timeout    time.Duration
	RetryDelay time.Duration
	MaxRetries int
}

// NewBoundaryFilter builds a filter from pipeline config.
func NewBoundaryFilter(invoker ai.Invoker, cfg Config) *BoundaryFilter {
	return &BoundaryFilter{
		Invoker:    invoker,
		Policy:     cfg.FilterPolicy,
		Timeout:    cfg.AI.Timeout,
		RetryDelay: cfg.AI.RetryDelay,
		MaxRetries: cfg.AI.MaxRetries,
	}
}

// FilterForCommit asks the AI for the boundary bubble and returns the
// candidate messages from that boundary onward, streamlined. AI failures
// never propagate: depending on policy the result degrades to the full
// candidate list (conservative, default) or to nothing (aggressive).
func (f *BoundaryFilter) FilterForCommit(ctx context.Context, messages []Message, commit Commit, gitCtx GitContext) []StreamlinedMessage {
	if len(messages) == 0 {
		return []StreamlinedMessage{}
	}

	decision, err := f.decide(ctx, messages, commit, gitCtx)
	if err != nil {
		slog.Warn("boundary filter unavailable, applying failure policy",
			"policy", string(f.Policy), "error", Redact(err.Error()))
		return f.fallback(messages)
	}

	boundary := -1
	for i, msg := range messages {
		if msg.BubbleID != "" && msg.BubbleID == decision.BubbleID {
			boundary = i
			break
		}
	}
	if boundary < 0 {
		// A boundary the model invented is treated as a failure, not
		// trusted: under-filtering beats losing work history.
		slog.Warn("boundary bubble not in candidate set, applying failure policy",
			"bubbleId", decision.BubbleID, "policy", string(f.Policy))
		return f.fallback(messages)
	}

	slog.Debug("boundary identified",
		"bubbleId", decision.BubbleID,
		"confidence", decision.Confidence,
		"kept", len(messages)-boundary)
	return Streamline(messages[boundary:])
}

func (f *BoundaryFilter) fallback(messages []Message) []StreamlinedMessage {
	if f.Policy == PolicyAggressive {
		return []StreamlinedMessage{}
	}
	return Streamline(messages)
}

// decide invokes the model with a timeout and a small bounded retry, and
// strictly parses the response. Expected failures come back as errors, not
// panics or logs-as-control-flow.
func (f *BoundaryFilter) decide(parent context.Context, messages []Message, commit Commit, gitCtx GitContext) (BoundaryDecision, error) {
	prompt := buildBoundaryPrompt(messages, commit, gitCtx)

	var lastErr error
	for attempt := 0; attempt <= f.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(f.RetryDelay):
			case <-parent.Done():
				return BoundaryDecision{}, parent.Err()
			}
		}

		ctx, cancel := context.WithTimeout(parent, f.Timeout)
		raw, err := f.Invoker.Invoke(ctx, prompt, boundarySystemContext)
		cancel()
		if err != nil {
			lastErr = err
			continue
		}

		decision, err := ParseBoundaryDecision(raw)
		if err != nil {
			lastErr = err
			continue
		}
		return decision, nil
	}
	return BoundaryDecision{}, lastErr
}

// ParseBoundaryDecision strictly parses an AI response. The response must
// be a JSON object with exactly a non-empty bubbleId string, an integer
// confidence in 1..10, and non-empty reasoning; anything else is a
// ParseError.
func ParseBoundaryDecision(raw string) (BoundaryDecision, error) {
	trimmed := strings.TrimSpace(stripCodeFence(raw))

	// Confidence stays raw so a quoted number ("8") is rejected as
	// mistyped rather than silently coerced.
	var fields struct {
		BubbleID   *string         `json:"bubbleId"`
		Confidence json.RawMessage `json:"confidence"`
		Reasoning  *string         `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision", Err: err}
	}

	if fields.BubbleID == nil || *fields.BubbleID == "" {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision",
			Err: fmt.Errorf("missing or empty bubbleId")}
	}
	if fields.Reasoning == nil || *fields.Reasoning == "" {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision",
			Err: fmt.Errorf("missing or empty reasoning")}
	}
	if len(fields.Confidence) == 0 || string(fields.Confidence) == "null" {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision",
			Err: fmt.Errorf("missing confidence")}
	}
	confidence, err := strconv.ParseInt(string(fields.Confidence), 10, 64)
	if err != nil {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision",
			Err: fmt.Errorf("confidence %s is not an integer", fields.Confidence)}
	}
	if confidence < 1 || confidence > 10 {
		return BoundaryDecision{}, &ParseError{Source: "ai", Key: "boundary decision",
			Err: fmt.Errorf("confidence %d outside 1..10", confidence)}
	}

	return BoundaryDecision{
		BubbleID:   *fields.BubbleID,
		Confidence: int(confidence),
		Reasoning:  *fields.Reasoning,
	}, nil
}

// stripCodeFence removes a surrounding markdown code fence, which models
// add even when asked for bare JSON.
func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return trimmed
}

// Streamline strips internal bookkeeping fields before messages leave the
// core.
func Streamline(messages []Message) []StreamlinedMessage {
	out := make([]StreamlinedMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, StreamlinedMessage{
			Role:        msg.Role,
			Content:     msg.Content,
			SessionName: msg.SessionName,
		})
	}
	return out
}

const boundarySystemContext = `You are helping attribute IDE chat history to a source-control commit.
Given a chronological candidate message list and commit details, identify
the earliest message where work on THIS commit begins. Respond with a
single JSON object: {"bubbleId": "<id from the list>", "confidence": <1-10>, "reasoning": "<one sentence>"}.
Do not include any other text.`

func buildBoundaryPrompt(messages []Message, commit Commit, gitCtx GitContext) string {
	var sb strings.Builder

	sb.WriteString("Commit message:\n")
	sb.WriteString(commit.Message)
	sb.WriteString("\n\nChanged files:\n")
	for _, file := range commit.ChangedFiles {
		sb.WriteString("- ")
		sb.WriteString(file)
		sb.WriteString("\n")
	}

	if gitCtx.PreviousJournalEntry != "" {
		sb.WriteString("\nJournal entry for the previous commit (work before the boundary):\n")
		sb.WriteString(gitCtx.PreviousJournalEntry)
		sb.WriteString("\n")
	}

	sb.WriteString("\nCandidate messages, oldest first:\n")
	for _, msg := range messages {
		role := msg.Role
		if at := msg.Time(); !at.IsZero() {
			role = msg.Role + ", " + at.UTC().Format("2006-01-02 15:04")
		}
		sb.WriteString(fmt.Sprintf("[%s] (%s) %s\n", msg.BubbleID, role, truncateContent(msg.Content)))
	}

	sb.WriteString("\nWhich bubbleId is the boundary where this commit's work begins?")
	return sb.String()
}

const maxPromptContent = 300

func truncateContent(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if len(content) <= maxPromptContent {
		return content
	}
	return content[:maxPromptContent] + "..."
}
