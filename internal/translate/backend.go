package translate

import (
	"context"
	"errors"
)

// ErrNoCredentials marks the configured no-API-key mode: the backend is
// never dialed and the caller degrades to tagged fallback text.
var ErrNoCredentials = errors.New("translation backend: no credentials configured")

// BatchRequest is one batched localization call: all target locales in a
// single request. Context is advisory register metadata ("Global Chat
// Message", "Document Body", ...) passed through to the backend; it never
// affects caching or glossary logic.
type BatchRequest struct {
	Text          string
	SourceLocale  string
	TargetLocales []string
	Context       string
}

// Backend performs batched localization. The returned slice is positionally
// aligned with TargetLocales.
type Backend interface {
	BatchLocalize(ctx context.Context, req BatchRequest) ([]string, error)
}
