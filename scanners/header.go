package scanners

import (
	"context"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// defaultSnippetLength bounds ScanHeader/ScanFooter output when the
// assignment's options carry no "length".
const defaultSnippetLength = 50

// Header reports the leading bytes of the file.
type Header struct{}

// NewHeader constructs the ScanHeader scanner.
func NewHeader(_ *config.Config, _ *coordinator.Client) Scanner {
	return &Header{}
}

// Scan returns up to length leading bytes.
func (s *Header) Scan(_ context.Context, data []byte, _ *types.File, opts config.Options, _ time.Time) (*Result, error) {
	n := opts.Int("length", defaultSnippetLength)
	if n > len(data) {
		n = len(data)
	}
	return &Result{Output: map[string]any{"header": string(data[:n])}}, nil
}

// Footer reports the trailing bytes of the file.
type Footer struct{}

// NewFooter constructs the ScanFooter scanner.
func NewFooter(_ *config.Config, _ *coordinator.Client) Scanner {
	return &Footer{}
}

// Scan returns up to length trailing bytes.
func (s *Footer) Scan(_ context.Context, data []byte, _ *types.File, opts config.Options, _ time.Time) (*Result, error) {
	n := opts.Int("length", defaultSnippetLength)
	if n > len(data) {
		n = len(data)
	}
	return &Result{Output: map[string]any{"footer": string(data[len(data)-n:])}}, nil
}
