package registry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/logger"
)

// Store loads and saves registry state at a fixed path. Like the SSH config
// manager, it has no cross-process locking; operations are read-modify-write
// with last writer winning.
type Store struct {
	path string
	log  logger.Logger
}

// NewStore creates a Store for the given state file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		log:  logger.NewEnvLogger("[registry]"),
	}
}

// SetLogger replaces the store's logger. Useful for tests.
func (s *Store) SetLogger(l logger.Logger) {
	s.log = l
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file yields empty state.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to read pod registry",
			"Check permissions on "+s.path)
	}

	state := NewState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Pod registry is not valid JSON: "+s.path,
			"Fix or remove the file; rp will recreate it")
	}

	// Maps omitted from the file come back nil.
	if state.Aliases == nil {
		state.Aliases = make(map[string]string)
	}
	if state.Pods == nil {
		state.Pods = make(map[string]PodMetadata)
	}
	if state.Templates == nil {
		state.Templates = make(map[string]Template)
	}
	return state, nil
}

// Save writes the state file, creating its directory if needed. The write
// goes through a temp file and rename so a crash never leaves a truncated
// registry.
func (s *Store) Save(state *State) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to create config directory",
			"Check permissions on "+dir)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to encode pod registry", "")
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".rp-registry-*")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write pod registry",
			"Check permissions and disk space in "+dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write pod registry",
			"Check disk space in "+dir)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to set registry permissions", "")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write pod registry", "")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write pod registry",
			"Check permissions on "+s.path)
	}

	s.log.Debug("saved registry (%d pods, %d tasks, %d templates)",
		len(state.Pods), len(state.Tasks), len(state.Templates))
	return nil
}

// Update loads the state, applies fn, and saves the result when fn reports a
// change. Convenience for single-shot CLI operations.
func (s *Store) Update(fn func(*State) (changed bool, err error)) error {
	state, err := s.Load()
	if err != nil {
		return err
	}
	changed, err := fn(state)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.Save(state)
}
