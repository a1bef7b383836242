package tasting

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/h2non/filetype"
	"gopkg.in/yaml.v3"
)

// Signature is one operator-supplied magic signature registered on top of the
// built-in content-sniffing database.
type Signature struct {
	// Mime is the label produced when the signature matches.
	Mime string `yaml:"mime"`
	// Extension is the canonical file extension, without the dot.
	Extension string `yaml:"extension"`
	// Magic is the leading byte sequence as hex, spaces allowed ("4d 5a").
	Magic string `yaml:"magic"`
}

type signatureFile struct {
	Signatures []Signature `yaml:"signatures"`
}

// RegisterSignatures loads custom magic signatures from a YAML file and
// registers them with the content sniffer. Registration is global and
// happens once at worker start.
func RegisterSignatures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read mime db %q: %w", path, err)
	}

	var sf signatureFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("invalid YAML in mime db %s: %w", path, err)
	}

	for i, sig := range sf.Signatures {
		if sig.Mime == "" || sig.Magic == "" {
			return fmt.Errorf("mime db %s: signature %d needs mime and magic", path, i)
		}
		magic, err := hex.DecodeString(strings.ReplaceAll(sig.Magic, " ", ""))
		if err != nil {
			return fmt.Errorf("mime db %s: signature %d magic: %w", path, i, err)
		}
		t := filetype.NewType(sig.Extension, sig.Mime)
		filetype.AddMatcher(t, func(buf []byte) bool {
			return bytes.HasPrefix(buf, magic)
		})
	}
	return nil
}

// DetectMime returns one MIME label for the given bytes.
//
// The magic-signature sniffer covers binary formats; content it cannot name
// (notably plain text variants) falls back to stdlib content sniffing, with
// media-type parameters stripped so labels stay comparable in rules
// ("text/plain", never "text/plain; charset=utf-8").
func DetectMime(data []byte) string {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		return t.MIME.Value
	}

	label := http.DetectContentType(data)
	if i := strings.Index(label, ";"); i >= 0 {
		label = label[:i]
	}
	return strings.TrimSpace(label)
}
