// Package translate produces per-locale translations of chat and document
// text. Lookup order is glossary guard, fingerprint cache, then one batched
// backend call; failures degrade to visibly tagged original text instead of
// blocking or silently showing the wrong language.
package translate

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Translator combines the glossary guard, the memoization cache and the
// backend. Concurrent requests for the same fingerprint join one in-flight
// computation instead of issuing redundant backend calls.
type Translator struct {
	glossary *Glossary
	cache    *Cache
	backend  Backend
	flight   singleflight.Group
	logger   *zap.Logger
}

// New creates a translator.
func New(glossary *Glossary, cache *Cache, backend Backend, logger *zap.Logger) *Translator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Translator{
		glossary: glossary,
		cache:    cache,
		backend:  backend,
		logger:   logger,
	}
}

// TranslateBatch maps every target locale to a translation of text.
// It never fails: backend errors yield "[XX] original text" entries so the
// degradation is visible to the reader. hint is advisory register context
// for the backend and does not participate in caching.
func (t *Translator) TranslateBatch(ctx context.Context, text string, targets []string, sourceLocale, hint string) map[string]string {
	if len(targets) == 0 {
		return map[string]string{}
	}

	// Protected terms bypass cache and backend entirely.
	if canonical, ok := t.glossary.Match(text); ok {
		results := make(map[string]string, len(targets))
		for _, locale := range targets {
			results[locale] = canonical
		}
		return results
	}

	key := Fingerprint(text, targets)
	if cached, ok := t.cache.Get(key); ok {
		return cached
	}

	v, _, _ := t.flight.Do(key, func() (any, error) {
		// A concurrent caller may have completed while we queued.
		if cached, ok := t.cache.Get(key); ok {
			return cached, nil
		}

		results := t.localize(ctx, text, targets, sourceLocale, hint)
		if len(results) > 0 {
			t.cache.Add(key, results)
		}
		return results, nil
	})
	return v.(map[string]string)
}

func (t *Translator) localize(ctx context.Context, text string, targets []string, sourceLocale, hint string) map[string]string {
	translated, err := t.backend.BatchLocalize(ctx, BatchRequest{
		Text:          text,
		SourceLocale:  sourceLocale,
		TargetLocales: targets,
		Context:       hint,
	})
	if err != nil {
		t.logger.Warn("translation degraded to tagged fallback",
			zap.Error(err),
			zap.Int("locales", len(targets)))
		return fallbackMapping(text, targets)
	}

	results := make(map[string]string, len(targets))
	for i, locale := range targets {
		if translated[i] == "" {
			results[locale] = fallbackText(text, locale)
			continue
		}
		results[locale] = translated[i]
	}
	return results
}

func fallbackMapping(text string, targets []string) map[string]string {
	results := make(map[string]string, len(targets))
	for _, locale := range targets {
		results[locale] = fallbackText(text, locale)
	}
	return results
}

// fallbackText tags the original text with the target locale so a failed
// translation is visible rather than silently wrong-language.
func fallbackText(text, locale string) string {
	return "[" + strings.ToUpper(locale) + "] " + text
}
