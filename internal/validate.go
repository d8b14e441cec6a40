package internal

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// storeSchemaProbe checks for either of the key-value tables Cursor uses
// without scanning any data. sqlite_master is always present, so a failure
// here means the file is not a usable store rather than a drifted one.
const storeSchemaProbe = "SELECT name FROM sqlite_master WHERE type = 'table' AND name IN ('ItemTable', 'cursorDiskKV')"

type validity struct {
	valid     bool
	checkedAt time.Time
}

// Validator answers "does this directory contain a usable store" and
// caches the verdict per path. The cache is required for performance, not
// correctness; clock and TTL are injectable so tests control invalidation.
type Validator struct {
	mu    sync.Mutex
	cache map[string]validity
	ttl   time.Duration
	now   func() time.Time

	// OnLookup, when set, observes every Validate call with whether the
	// verdict came from the cache. Must be safe for concurrent use.
	OnLookup func(hit bool)

	// QueryTimeout bounds each schema probe; zero means no deadline
	// beyond the caller's context.
	QueryTimeout time.Duration
}

// NewValidator creates a Validator with the given TTL. A nil clock
// defaults to time.Now.
func NewValidator(ttl time.Duration, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{
		cache: make(map[string]validity),
		ttl:   ttl,
		now:   now,
	}
}

// Validate reports whether the candidate directory holds at least one
// store file with the expected schema. I/O errors of any kind mean
// "invalid", never an error. Set bypass to skip the cache.
func (v *Validator) Validate(ctx context.Context, path string, bypass bool) bool {
	if !bypass {
		v.mu.Lock()
		entry, ok := v.cache[path]
		v.mu.Unlock()
		if ok && v.now().Sub(entry.checkedAt) < v.ttl {
			v.lookup(true)
			return entry.valid
		}
	}
	v.lookup(false)

	valid := v.check(ctx, path)

	v.mu.Lock()
	v.cache[path] = validity{valid: valid, checkedAt: v.now()}
	v.mu.Unlock()
	return valid
}

func (v *Validator) lookup(hit bool) {
	if v.OnLookup != nil {
		v.OnLookup(hit)
	}
}

// Invalidate drops the cached verdict for a path.
func (v *Validator) Invalidate(path string) {
	v.mu.Lock()
	delete(v.cache, path)
	v.mu.Unlock()
}

func (v *Validator) check(ctx context.Context, path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	if _, err := os.ReadDir(path); err != nil {
		return false
	}

	// A lightweight existence probe against the first store found, not a
	// full scan. Direct state.vscdb first, then one level of chunks.
	for _, candidate := range candidateStoreFiles(path) {
		qctx, cancel := v.queryContext(ctx)
		pairs, err := QueryStore(qctx, candidate, storeSchemaProbe)
		cancel()
		if err == nil && len(pairs) > 0 {
			return true
		}
	}
	return false
}

func (v *Validator) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if v.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, v.QueryTimeout)
}

func candidateStoreFiles(dir string) []string {
	var files []string
	direct := filepath.Join(dir, "state.vscdb")
	if _, err := os.Stat(direct); err == nil {
		files = append(files, direct)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if entry.IsDir() {
			nested := filepath.Join(dir, entry.Name(), "state.vscdb")
			if _, err := os.Stat(nested); err == nil {
				files = append(files, nested)
			}
		} else if isStoreFileName(entry.Name()) && entry.Name() != "state.vscdb" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}
