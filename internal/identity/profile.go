// Package identity persists the local participant's profile: the display
// name and preferred language survive restarts on one device. The profile is
// an external input to the sync core; a missing profile makes the core
// operations no-op instead of fail.
package identity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Profile is the locally persisted identity.
type Profile struct {
	Name              string `toml:"name"`
	PreferredLanguage string `toml:"preferred_language"`
}

// ErrNoProfile is returned by Load when no profile has been saved yet.
var ErrNoProfile = errors.New("no profile saved")

// IsZero reports whether the profile is unusable (no name).
func (p Profile) IsZero() bool {
	return strings.TrimSpace(p.Name) == ""
}

// Key returns the normalized identity used for origin filtering:
// trimmed and lowercased, so "Alice " and "alice" are the same author.
func (p Profile) Key() string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// Load reads the profile from path.
func Load(path string) (Profile, error) {
	var p Profile
	if _, err := os.Stat(path); err != nil {
		return Profile{}, ErrNoProfile
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Save writes the profile to path, creating parent dirs as needed.
func Save(path string, p Profile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(p)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// Clear removes the saved profile. Missing file is not an error.
func Clear(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
