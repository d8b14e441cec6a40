package internal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/iksnae/cursor-journal/internal/ai"
	"github.com/iksnae/cursor-journal/internal/telemetry"
)

// Pipeline wires the whole retrieval path together: platform location,
// workspace validation, windowing, session retrieval, limiting, and
// boundary filtering. One instance is safe for concurrent use.
type Pipeline struct {
	cfg       Config
	validator *Validator
	provider  *SessionProvider
	filter    *BoundaryFilter
	rec       *telemetry.Recorder
	tracer    trace.Tracer
}

// NewPipeline builds a Pipeline. A nil recorder disables metric emission;
// spans go nowhere until WithTracer is called.
func NewPipeline(cfg Config, invoker ai.Invoker, rec *telemetry.Recorder) *Pipeline {
	p := &Pipeline{
		cfg:       cfg,
		validator: NewValidator(cfg.ValidityTTL, nil),
		provider:  &SessionProvider{QueryTimeout: cfg.QueryTimeout},
		filter:    NewBoundaryFilter(invoker, cfg),
		rec:       rec,
		tracer:    tracenoop.NewTracerProvider().Tracer(telemetry.ScopeName),
	}
	p.validator.QueryTimeout = cfg.QueryTimeout
	p.validator.OnLookup = func(hit bool) {
		if rec == nil || rec.CacheLookups == nil {
			return
		}
		outcome := "miss"
		if hit {
			outcome = "hit"
		}
		rec.CacheLookups.Add(context.Background(), 1,
			metric.WithAttributes(telemetry.KeyCacheOutcome.String(outcome)))
	}
	return p
}

// WithTracer routes pipeline spans to the given tracer.
func (p *Pipeline) WithTracer(tracer trace.Tracer) *Pipeline {
	p.tracer = tracer
	return p
}

// MessagesForCommit returns the bounded, ordered, streamlined message list
// attributed to one commit.
//
// This is the only place the pipeline fails loudly: when no workspace can
// be found and no override is set. Every other failure mode degrades to
// "as much data as could be recovered". Merge commits yield an empty list.
func (p *Pipeline) MessagesForCommit(ctx context.Context, commit Commit, gitCtx GitContext) ([]StreamlinedMessage, error) {
	ctx, span := p.tracer.Start(ctx, "MessagesForCommit")
	defer span.End()

	window, ok := WindowFor(commit, nil)
	if !ok {
		slog.Info("merge commit, skipping chat attribution", "commit", commit.Hash)
		return []StreamlinedMessage{}, nil
	}
	span.SetAttributes(telemetry.KeyWindowStrategy.String(window.Strategy))
	slog.Debug("computed commit window",
		"strategy", window.Strategy, "duration_hours", window.DurationHours)

	workspaces, err := p.validWorkspaces(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(telemetry.KeyWorkspaceCount.Int(len(workspaces)))
	if p.rec != nil {
		p.count(ctx, p.rec.WorkspacesFound, int64(len(workspaces)))
	}

	history := p.collect(ctx, workspaces, window)

	limited, limitMeta := Limit(history, p.cfg.MaxUserMessages, p.cfg.MaxAssistantMessages)
	if limitMeta != nil {
		slog.Info("history truncated",
			"user_removed", limitMeta.UserRemoved,
			"assistant_removed", limitMeta.AssistantRemoved)
		if p.rec != nil {
			p.count(ctx, p.rec.MessagesTruncated,
				int64(limitMeta.UserRemoved+limitMeta.AssistantRemoved))
		}
	}

	filtered := p.filter.FilterForCommit(ctx, limited, commit, gitCtx)
	span.SetAttributes(
		telemetry.KeyFilterBeforeCount.Int(len(limited)),
		telemetry.KeyFilterAfterCount.Int(len(filtered)),
	)
	p.recordReduction(ctx, len(limited), len(filtered))
	return filtered, nil
}

// validWorkspaces resolves candidate roots and keeps the workspace
// directories that validate.
func (p *Pipeline) validWorkspaces(ctx context.Context) ([]string, error) {
	roots, err := CandidateRoots(p.cfg)
	if err != nil {
		return nil, err
	}

	var valid []string
	for _, root := range roots {
		// An override path may point directly at a storage directory
		// rather than a Cursor user root.
		if p.validator.Validate(ctx, root, false) {
			valid = append(valid, root)
		}
		for _, ws := range ListWorkspaces(root) {
			if p.validator.Validate(ctx, ws.Dir, false) {
				valid = append(valid, ws.Dir)
			}
		}
		if global := filepath.Join(root, "globalStorage"); dirExists(global) {
			if p.validator.Validate(ctx, global, false) {
				valid = append(valid, global)
			}
		}
	}

	if len(valid) == 0 {
		if p.cfg.WorkspaceOverride != "" {
			return nil, &NotFoundError{
				Path: p.cfg.WorkspaceOverride,
				Op:   "discover",
				Err:  errors.New("override path holds no usable store"),
			}
		}
		return nil, &NotFoundError{
			Path: "auto-discovery",
			Op:   "discover",
			Err:  errors.New("no Cursor workspace with a usable store was found"),
		}
	}
	return valid, nil
}

// collect gathers messages across all validated workspaces in one
// retrieval pass. Validated workspaces can nest (a user-data root contains
// its workspaceStorage and globalStorage dirs), so discovered store paths
// are deduplicated before retrieval; a store must contribute each message
// exactly once no matter how many roots reach it.
func (p *Pipeline) collect(ctx context.Context, workspaces []string, window Window) []Message {
	seen := make(map[string]bool)
	var stores []string
	for _, workspace := range workspaces {
		for _, path := range DiscoverAll(workspace) {
			if seen[path] {
				continue
			}
			seen[path] = true
			stores = append(stores, path)
		}
	}

	recent := FilterRecent(stores, p.cfg.RecencyWindow, nil)
	if dropped := len(stores) - len(recent); dropped > 0 {
		slog.Debug("recency filter skipped older chunks", "dropped", dropped)
		if p.rec != nil {
			p.count(ctx, p.rec.StoresFiltered, int64(dropped))
		}
	}

	history, err := p.provider.MessagesFromStores(ctx, recent, window)
	if err != nil {
		slog.LogAttrs(ctx, slog.LevelWarn, "retrieval failed", ErrorAttrs(err)...)
		return nil
	}
	return history
}

func (p *Pipeline) count(ctx context.Context, counter metric.Int64Counter, n int64) {
	if p.rec == nil || counter == nil || n == 0 {
		return
	}
	counter.Add(ctx, n)
}

func (p *Pipeline) recordReduction(ctx context.Context, before, after int) {
	if before > 0 {
		pct := 100 * float64(before-after) / float64(before)
		slog.Debug("boundary filter applied", "before", before, "after", after, "reduction_pct", pct)
		if p.rec != nil && p.rec.FilterReduction != nil {
			p.rec.FilterReduction.Record(ctx, pct)
		}
	}
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// WithDeadline applies the caller's overall budget to a context. On
// deadline exceed the pipeline returns whatever it has accumulated rather
// than raising.
func WithDeadline(ctx context.Context, budget time.Duration) (context.Context, context.CancelFunc) {
	if budget <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, budget)
}
