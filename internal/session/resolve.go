package session

import "github.com/glotpad/glotpad/internal/config"

// DefaultSessionName is used when neither the flag nor config names one.
const DefaultSessionName = "main"

// Resolve picks the active session name: an explicit flag wins, then the
// default_session key in ~/.glotpad/config.toml, then "main". A missing or
// unreadable config is not an error here, it just falls through.
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	if cfg, err := config.Load(ConfigPath()); err == nil && cfg.DefaultSession != "" {
		return cfg.DefaultSession
	}
	return DefaultSessionName
}
