// Package dotdir manages the .memex/ and ~/.memex directories.
//
// The dotdir holds config.toml, the default SQLite databases, and the
// active-profile state shared by CLI invocations.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the memex directory.
	dirName = ".memex"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .memex/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.memex/ dir
//  3. Home ~/.memex/ dir
//
// Returns an empty path with nil error when none of these exist;
// callers fall back to defaults. Use Ensure to create ~/.memex.
func (m *Manager) Target(overrideDir string) (string, error) {
	switch {
	case overrideDir != "":
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating memex directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		return filepath.Abs(filepath.Join(cwd, dirName))

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}

		dir := filepath.Join(home, dirName)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return "", nil
		}
		return filepath.Abs(dir)
	}
}

// Ensure resolves like Target but creates ~/.memex when no directory is
// found anywhere. Used by initialize.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil || target != "" {
		return target, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating memex directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// localDirExists checks whether a .memex/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
