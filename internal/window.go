package internal

import (
	"log/slog"
	"time"
)

// Window strategies, exactly one per commit.
const (
	StrategyCommitBased = "commit_based"
	StrategyFirstCommit = "first_commit"
	StrategyFallback24h = "fallback_24h"
)

const fallbackWindow = 24 * time.Hour

// Commit carries the already-resolved repository metadata this core needs.
// An external git-access collaborator supplies it; this core never shells
// out to git.
type Commit struct {
	Hash         string
	Message      string
	ChangedFiles []string

	// TimestampSec is the commit timestamp in epoch seconds; zero or
	// negative means the collaborator failed to resolve it.
	TimestampSec int64

	// ParentTimestampsSec holds one entry per parent, first parent first.
	// Unresolvable parents come through as zero.
	ParentTimestampsSec []int64
}

// IsMerge reports whether the commit has more than one parent.
func (c Commit) IsMerge() bool {
	return len(c.ParentTimestampsSec) > 1
}

// Window is the millisecond time span of chat history attributed to one
// commit. DurationHours is derived from the bounds, never computed
// independently.
type Window struct {
	StartMs       int64
	EndMs         int64
	Strategy      string
	DurationHours float64
}

func newWindow(startMs, endMs int64, strategy string) Window {
	return Window{
		StartMs:       startMs,
		EndMs:         endMs,
		Strategy:      strategy,
		DurationHours: float64(endMs-startMs) / 3_600_000,
	}
}

// WindowFor derives the chat-history window for a commit. The second
// return is false only for merge commits, which get no window at all so
// chat history is never attributed to a merge. Timestamp resolution
// failures fall back to the trailing 24 hours and are logged, never
// raised.
func WindowFor(commit Commit, now func() time.Time) (Window, bool) {
	if now == nil {
		now = time.Now
	}

	if commit.IsMerge() {
		return Window{}, false
	}

	switch {
	case len(commit.ParentTimestampsSec) == 1:
		parentSec := commit.ParentTimestampsSec[0]
		if parentSec <= 0 || commit.TimestampSec <= 0 || parentSec > commit.TimestampSec {
			return fallback(commit, now), true
		}
		return newWindow(parentSec*1000, commit.TimestampSec*1000, StrategyCommitBased), true

	default: // repository root commit
		if commit.TimestampSec <= 0 {
			return fallback(commit, now), true
		}
		endMs := commit.TimestampSec * 1000
		return newWindow(endMs-fallbackWindow.Milliseconds(), endMs, StrategyFirstCommit), true
	}
}

func fallback(commit Commit, now func() time.Time) Window {
	slog.Warn("could not resolve commit timestamps, using trailing 24h window",
		"commit", commit.Hash)
	endMs := now().UnixMilli()
	return newWindow(endMs-fallbackWindow.Milliseconds(), endMs, StrategyFallback24h)
}
