package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TasksState is the persisted task mapping of one project.
type TasksState struct {
	// IDs maps store-local numeric ids, as strings, to store
	// identifiers.
	IDs map[string]string `json:"ids"`
	// OldUUIDs lists identifiers of tasks known to have been completed
	// or deleted, so they are not re-imported.
	OldUUIDs []string `json:"old_uuids"`
}

// State is the per-project sidecar file: the id mapping plus the
// annotation dedupe list. It is loaded lazily and written atomically
// after every modifying sync.
type State struct {
	path string

	Tasks TasksState `json:"tasks"`
	// Annotations lists [identifier, iso-timestamp] pairs already
	// turned into log lines.
	Annotations [][2]string `json:"annotations"`
}

// LoadState reads the state file for a project from stateDir. A missing
// or malformed file yields an empty state.
func LoadState(stateDir, name string) *State {
	s := &State{
		path:  filepath.Join(stateDir, "project-"+name+".json"),
		Tasks: TasksState{IDs: make(map[string]string)},
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, s); err != nil {
		return &State{path: s.path, Tasks: TasksState{IDs: make(map[string]string)}}
	}
	if s.Tasks.IDs == nil {
		s.Tasks.IDs = make(map[string]string)
	}
	return s
}

// Save writes the state atomically: tmp file, fsync, rename.
func (s *State) Save() error {
	data, err := json.MarshalIndent(s, "", " ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-tmp-*")
	if err != nil {
		return fmt.Errorf("state: create temp: %w", err)
	}
	tmpName := tmp.Name()
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("state: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("state: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("state: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("state: rename: %w", err)
	}
	success = true
	return nil
}

// KnowsAnnotation reports whether an (identifier, timestamp) pair has
// already been logged.
func (s *State) KnowsAnnotation(uuid, iso string) bool {
	for _, a := range s.Annotations {
		if a[0] == uuid && a[1] == iso {
			return true
		}
	}
	return false
}

// AddAnnotation records an (identifier, timestamp) pair.
func (s *State) AddAnnotation(uuid, iso string) {
	s.Annotations = append(s.Annotations, [2]string{uuid, iso})
}
