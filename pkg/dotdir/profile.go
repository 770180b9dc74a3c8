package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	profileFile = "profile.json"
)

// ProfileState is the persisted active-profile selection. CLI commands
// fall back to it when --profile is not given, so a user working on one
// persona does not have to repeat the flag.
type ProfileState struct {
	// ProfileID is the active persona profile.
	ProfileID string `json:"profile_id"`
}

// LoadProfileState loads the active profile from a target
// .memex/profile.json. Returns nil, nil if no state exists.
// If overrideDir is non-empty, it is used instead of the default
// ~/.memex/ location.
func (m *Manager) LoadProfileState(overrideDir string) (*ProfileState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, nil
	}

	path := filepath.Join(dir, profileFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading profile state: %w", err)
	}

	state := &ProfileState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing profile state: %w", err)
	}

	return state, nil
}

// SaveProfileState persists the active profile to a target
// .memex/profile.json.
func (m *Manager) SaveProfileState(state *ProfileState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil profile state")
	}

	dir, err := m.Ensure(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profile state: %w", err)
	}

	path := filepath.Join(dir, profileFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile state: %w", err)
	}

	return nil
}

// ResolveProfile returns flagValue when set, otherwise the persisted
// active-profile selection. Errors when neither names a profile, since
// every data command needs one.
func (m *Manager) ResolveProfile(flagValue, overrideDir string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	state, err := m.LoadProfileState(overrideDir)
	if err != nil {
		return "", err
	}
	if state == nil || state.ProfileID == "" {
		return "", errors.New(`no profile selected: pass --profile or run "memex profile use <id>"`)
	}
	return state.ProfileID, nil
}

// ClearProfileState removes the profile state file, so commands fall
// back to the configured default profile.
// Returns nil if the file doesn't exist (already cleared).
func (m *Manager) ClearProfileState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return nil
	}

	path := filepath.Join(dir, profileFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing profile state: %w", err)
	}

	return nil
}
