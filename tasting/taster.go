// Package tasting classifies file bytes into flavor labels.
//
// Two independent classifiers run sequentially: magic-signature MIME
// detection (one label per invocation) and a compiled rule matcher (zero or
// more labels, one per matching rule). Both are loaded once at worker start;
// tasting the same bytes twice yields identical flavor sets.
package tasting

import "github.com/strelka-go/backend/cli/config"

// Taster bundles the classifiers configured for this worker.
type Taster struct {
	matcher *Matcher
}

// New builds a Taster from the tasting config: optional custom magic
// signatures plus an optional rule file or rule directory.
func New(cfg config.TastingConfig) (*Taster, error) {
	if cfg.MimeDB != "" {
		if err := RegisterSignatures(cfg.MimeDB); err != nil {
			return nil, err
		}
	}

	t := &Taster{}
	if cfg.YaraRules != "" {
		matcher, err := CompileRules(cfg.YaraRules)
		if err != nil {
			return nil, err
		}
		t.matcher = matcher
	}
	return t, nil
}

// Taste classifies the bytes: one MIME label plus the names of every
// matching rule.
func (t *Taster) Taste(data []byte) (mime string, rules []string) {
	return DetectMime(data), t.matcher.Match(data)
}
