package internal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// cursorUserSuffix is the path under a platform data root where Cursor
// keeps its per-user state.
const cursorUserSuffix = "Cursor/User"

// CandidateRoots resolves the ordered list of candidate Cursor user-data
// roots, most specific first. When cfg.WorkspaceOverride is set it is the
// only candidate; auto-discovery is bypassed entirely.
func CandidateRoots(cfg Config) ([]string, error) {
	if cfg.WorkspaceOverride != "" {
		return []string{cfg.WorkspaceOverride}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, &NotFoundError{Path: "~", Op: "locate", Err: err}
	}
	return candidateRootsFor(runtime.GOOS, home, os.Getenv("APPDATA"))
}

// candidateRootsFor is the pure core of CandidateRoots, parameterized for
// tests. appData is only consulted on windows.
func candidateRootsFor(goos, home, appData string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{filepath.Join(home, "Library/Application Support", cursorUserSuffix)}, nil
	case "linux":
		roots := []string{filepath.Join(home, ".config", cursorUserSuffix)}
		// Under WSL the IDE usually runs on the Windows side; translate
		// every discoverable Windows user profile.
		roots = append(roots, wslProfileRoots("/mnt/c/Users")...)
		return roots, nil
	case "windows":
		if appData == "" {
			return nil, &NotFoundError{Path: "%APPDATA%", Op: "locate", Err: os.ErrNotExist}
		}
		return []string{filepath.Join(appData, cursorUserSuffix)}, nil
	default:
		return nil, &ErrUnsupportedPlatform{GOOS: goos}
	}
}

// wslProfileRoots returns Cursor data roots for each Windows user profile
// visible under the WSL mount. Returns nil when not running under WSL.
func wslProfileRoots(usersDir string) []string {
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		return nil
	}

	var roots []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		switch entry.Name() {
		case "Public", "Default", "Default User", "All Users":
			continue
		}
		root := filepath.Join(usersDir, entry.Name(), "AppData/Roaming", cursorUserSuffix)
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			roots = append(roots, root)
		}
	}
	return roots
}

// WorkspaceInfo describes one workspace directory under workspaceStorage.
type WorkspaceInfo struct {
	Hash string // directory name, a content hash assigned by the IDE
	Path string // source folder recorded in workspace.json, may be empty
	Name string // base name of Path
	Dir  string // absolute workspace storage directory
}

// ListWorkspaces enumerates workspace directories under a user-data root.
// A missing workspaceStorage directory yields an empty list, not an error.
func ListWorkspaces(root string) []WorkspaceInfo {
	storageDir := filepath.Join(root, "workspaceStorage")
	entries, err := os.ReadDir(storageDir)
	if err != nil {
		return nil
	}

	var workspaces []WorkspaceInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info := WorkspaceInfo{
			Hash: entry.Name(),
			Dir:  filepath.Join(storageDir, entry.Name()),
		}
		if data, err := os.ReadFile(filepath.Join(info.Dir, "workspace.json")); err == nil {
			var meta struct {
				Folder string `json:"folder"`
			}
			if err := json.Unmarshal(data, &meta); err == nil && meta.Folder != "" {
				info.Path = meta.Folder
				info.Name = filepath.Base(meta.Folder)
			}
		}
		workspaces = append(workspaces, info)
	}
	return workspaces
}
