// Package projectstate manages the active project selection via a local
// JSON state file. No database involved; the classifier and worker read
// this to know which project context to load.
package projectstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simonhq/focus/cmd/focus/cli/jsonutil"
	"github.com/simonhq/focus/cmd/focus/cli/logging"
	"github.com/simonhq/focus/cmd/focus/cli/paths"
)

// State is the on-disk active-project selection.
type State struct {
	// Global is the default project slug, or empty when unset.
	Global string `json:"global"`
	// Workspaces maps workspace paths to per-workspace overrides.
	Workspaces map[string]string `json:"workspaces"`
}

func emptyState() *State {
	return &State{Workspaces: make(map[string]string)}
}

// Read loads the project state file. A missing or corrupt file yields an
// empty state rather than an error.
func Read() *State {
	path, err := paths.ActiveProjectFile()
	if err != nil {
		return emptyState()
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is under the focus config dir
	if err != nil {
		return emptyState()
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logging.Warn(nil, "failed to read project state", "error", err)
		return emptyState()
	}
	if state.Workspaces == nil {
		state.Workspaces = make(map[string]string)
	}
	return &state
}

// write persists the state atomically via a temp file rename.
func write(state *State) error {
	path, err := paths.ActiveProjectFile()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	data, err := jsonutil.MarshalIndentWithNewline(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // not sensitive
		return fmt.Errorf("write project state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename project state: %w", err)
	}
	return nil
}

// ActiveProject returns the active project slug for a workspace.
// Priority: per-workspace override, then global default, then empty.
func ActiveProject(workspace string) string {
	state := Read()
	if workspace != "" {
		if slug, ok := state.Workspaces[workspace]; ok && slug != "" {
			return slug
		}
	}
	return state.Global
}

// SetActiveProject sets the active project. With a workspace it sets a
// per-workspace override, otherwise the global default.
func SetActiveProject(slug, workspace string) error {
	state := Read()
	if workspace != "" {
		state.Workspaces[workspace] = slug
	} else {
		state.Global = slug
	}
	if err := write(state); err != nil {
		return err
	}
	logging.Info(nil, "active project set", "slug", slug, "workspace", workspace)
	return nil
}

// ClearActiveProject clears the active project selection. With a
// workspace it removes only that override, otherwise the global default.
func ClearActiveProject(workspace string) error {
	state := Read()
	if workspace != "" {
		delete(state.Workspaces, workspace)
	} else {
		state.Global = ""
	}
	if err := write(state); err != nil {
		return err
	}
	logging.Info(nil, "active project cleared", "workspace", workspace)
	return nil
}
