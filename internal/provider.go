package internal

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// SessionProvider pulls chat messages for a time window out of a set of
// store chunks. It holds no mutable state; one instance is safe for
// concurrent use.
type SessionProvider struct {
	// Concurrency bounds the store fan-out; zero means NumCPU.
	Concurrency int

	// QueryTimeout bounds each individual store query; zero means no
	// per-query deadline beyond the caller's context.
	QueryTimeout time.Duration
}

// GetMessages retrieves messages from every store chunk under a workspace
// root. This is the guaranteed-discovery path; callers that want the
// recency-filtered set pass it to MessagesFromStores directly.
func (p *SessionProvider) GetMessages(ctx context.Context, workspaceRoot string, window Window) ([]Message, error) {
	return p.MessagesFromStores(ctx, DiscoverAll(workspaceRoot), window)
}

// MessagesFromStores enumerates sessions whose lifetime intersects the
// window, reconstructs their messages, and merges across sessions into a
// single deterministic order. The caller supplies a duplicate-free store
// list; result slices are indexed by store so concatenation follows the
// given store order regardless of which worker finishes first.
//
// Per-store failures skip that store and continue: one corrupt chunk must
// never abort retrieval across the rest. When the context deadline is
// exceeded mid-retrieval, whatever has been accumulated is returned with a
// nil error, consistent with availability over completeness.
func (p *SessionProvider) MessagesFromStores(ctx context.Context, stores []string, window Window) ([]Message, error) {
	if len(stores) == 0 {
		return nil, nil
	}

	limit := p.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([][]Message, len(stores))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, store := range stores {
		i, store := i, store
		g.Go(func() error {
			msgs, err := p.storeMessages(gctx, store, window)
			if err != nil {
				// NotFound/Access/Schema/Query from the connection layer
				// all mean this chunk is unusable; skip it.
				slog.Warn("skipping unusable store chunk",
					"path", store, "error", Redact(err.Error()))
				return nil
			}
			results[i] = msgs
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; Wait only drains them

	var messages []Message
	for _, msgs := range results {
		messages = append(messages, msgs...)
	}

	if ctx.Err() != nil {
		slog.Warn("deadline exceeded during retrieval, returning partial history",
			"messages", len(messages))
	}

	sortMessages(messages)
	return messages, nil
}

// queryContext applies the per-query deadline when one is configured.
func (p *SessionProvider) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.QueryTimeout)
}

// storeMessages reads one chunk: session metadata, header lists, bubbles.
func (p *SessionProvider) storeMessages(ctx context.Context, path string, window Window) ([]Message, error) {
	qctx, cancel := p.queryContext(ctx)
	pairs, err := QueryPrefix(qctx, path, "cursorDiskKV", composerPrefix)
	cancel()
	if err != nil {
		return nil, err
	}

	var messages []Message
	for _, pair := range pairs {
		meta, err := ParseSessionMetadata(pair.Key, pair.Value)
		if err != nil {
			slog.Warn("skipping malformed session record", "key", pair.Key, "error", err)
			continue
		}
		if !meta.Intersects(window) || len(meta.Headers) == 0 {
			continue
		}

		sessionMsgs, err := p.sessionMessages(ctx, path, meta)
		if err != nil {
			// Per-session failures degrade to "skip this source".
			slog.Warn("skipping unreadable session",
				"composerId", meta.ComposerID, "error", Redact(err.Error()))
			continue
		}
		messages = append(messages, sessionMsgs...)
	}

	// Chunks written before composer sessions existed keep their history
	// only in the flat ItemTable arrays. Modern chunks may carry vestigial
	// copies of those arrays, so the fallback applies only when the chunk
	// has no composer rows at all.
	if len(pairs) == 0 {
		return p.legacyMessages(ctx, path, window)
	}
	return messages, nil
}

// legacyMessages reconstructs a chunk's flat prompt/generation arrays.
// Prompts carry no timestamp and ride along with any generation that
// intersects the window; when every timestamped record falls outside the
// window the whole chunk is excluded.
func (p *SessionProvider) legacyMessages(ctx context.Context, path string, window Window) ([]Message, error) {
	qctx, cancel := p.queryContext(ctx)
	prompts, err := ExtractPrompts(qctx, path)
	cancel()
	if err != nil {
		return nil, err
	}
	qctx, cancel = p.queryContext(ctx)
	generations, err := ExtractGenerations(qctx, path)
	cancel()
	if err != nil {
		return nil, err
	}
	if len(prompts) == 0 && len(generations) == 0 {
		return nil, nil
	}

	reconstruction := Reconstruct(prompts, generations)

	intersects := false
	timestamped := false
	for _, msg := range reconstruction.Messages {
		if msg.Timestamp == nil {
			continue
		}
		timestamped = true
		if *msg.Timestamp >= window.StartMs && *msg.Timestamp <= window.EndMs {
			intersects = true
			break
		}
	}
	if timestamped && !intersects {
		return nil, nil
	}

	var kept []Message
	for _, msg := range reconstruction.Messages {
		if msg.Timestamp != nil {
			if ts := *msg.Timestamp; ts < window.StartMs || ts > window.EndMs {
				continue
			}
		}
		kept = append(kept, msg)
	}
	return kept, nil
}

// sessionMessages resolves one session's header list against its bubbles.
// Messages whose reconstruction produced no content are dropped here; this
// is how thinking and tool-call-only records stay out of the output.
func (p *SessionProvider) sessionMessages(ctx context.Context, path string, meta SessionMetadata) ([]Message, error) {
	qctx, cancel := p.queryContext(ctx)
	pairs, err := QueryPrefix(qctx, path, "cursorDiskKV", bubblePrefix+meta.ComposerID+":")
	cancel()
	if err != nil {
		return nil, err
	}

	contentByBubble := make(map[string]BubbleContent, len(pairs))
	for _, pair := range pairs {
		_, bubbleID, ok := bubbleKeySuffix(pair.Key)
		if !ok {
			continue
		}
		content, err := ParseBubbleContent(pair.Key, pair.Value)
		if err != nil {
			slog.Debug("skipping malformed bubble", "key", pair.Key, "error", err)
			continue
		}
		contentByBubble[bubbleID] = content
	}

	// Session-level timestamps are coarse: every message in the session
	// shares createdAt. The merge tie-break below exists exactly for this.
	createdAt := meta.CreatedAt

	messages := make([]Message, 0, len(meta.Headers))
	for _, header := range meta.Headers {
		content, ok := contentByBubble[header.BubbleID]
		if !ok || content.Kind != "text" {
			continue
		}
		role := "assistant"
		if header.Type == TypeUser {
			role = "user"
		}
		ts := createdAt
		messages = append(messages, Message{
			Role:        role,
			Content:     content.Text,
			Timestamp:   &ts,
			SessionName: meta.Name,
			ComposerID:  meta.ComposerID,
			BubbleID:    header.BubbleID,
		})
	}
	return messages, nil
}

// sortMessages orders merged messages by timestamp ascending, breaking
// identical timestamps across sessions by composerId. The stable sort
// preserves header order within a session, and when one session is split
// across chunks it preserves the caller's store-order concatenation.
// Determinism here is a correctness requirement: boundary filtering and
// journal text downstream must be reproducible over identical data.
func sortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		ti, tj := int64(0), int64(0)
		if messages[i].Timestamp != nil {
			ti = *messages[i].Timestamp
		}
		if messages[j].Timestamp != nil {
			tj = *messages[j].Timestamp
		}
		if ti != tj {
			return ti < tj
		}
		return messages[i].ComposerID < messages[j].ComposerID
	})
}
