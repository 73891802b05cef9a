// Package session maps session names to their on-disk layout under
// ~/.glotpad and resolves which session a command acts on.
//
// Layout:
//
//	~/.glotpad/config.toml              global config
//	~/.glotpad/sessions/<name>/         per-session state
//	    LOCK, glotpad.db, profile.toml, logs/glotpadd.log
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.glotpad.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".glotpad")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// Dir returns the directory holding one session's state.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the session's lock file path.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// DBPath returns the session's sqlite database path.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "glotpad.db")
}

// ProfilePath returns where the identity profile lives.
func ProfilePath(name string) string {
	return filepath.Join(Dir(name), "profile.toml")
}

// LogDir returns the session's log directory.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "glotpadd.log")
}

// EnsureDir creates the session directory tree, 0700 throughout.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
