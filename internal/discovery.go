package internal

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// isStoreFileName reports whether a file name looks like one of Cursor's
// store chunks. The workspace store rotates into a new chunk roughly every
// 100 AI generations, so a long-lived workspace accumulates many of these.
func isStoreFileName(name string) bool {
	return name == "state.vscdb" || name == "store.db"
}

// DiscoverAll recursively finds every store chunk under a workspace root.
// Per-directory permission errors are skipped, never fatal: one unreadable
// subtree must not hide the chunks in its siblings. Results are sorted for
// stable downstream iteration.
func DiscoverAll(root string) []string {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isStoreFileName(d.Name()) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		// WalkDir only returns what the callback returns; reaching here
		// means the root itself was unreadable.
		slog.Debug("store discovery aborted", "root", root, "error", err)
	}
	sort.Strings(paths)
	return paths
}

// FilterRecent drops store chunks whose modification time falls outside
// the window. This is purely a performance bound for workspaces with years
// of chunked history; callers that need guaranteed session discovery use
// DiscoverAll alone. Paths that fail stat are dropped, not retried.
func FilterRecent(paths []string, window time.Duration, now func() time.Time) []string {
	if now == nil {
		now = time.Now
	}
	cutoff := now().Add(-window)

	recent := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			slog.Debug("dropping unstatable store chunk", "path", path, "error", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		recent = append(recent, path)
	}
	return recent
}
