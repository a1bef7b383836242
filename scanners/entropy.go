package scanners

import (
	"context"
	"math"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// Entropy reports the Shannon entropy of the byte distribution, a cheap
// packed/encrypted-content signal.
type Entropy struct{}

// NewEntropy constructs the ScanEntropy scanner.
func NewEntropy(_ *config.Config, _ *coordinator.Client) Scanner {
	return &Entropy{}
}

// Scan computes entropy in bits per byte (0 for empty input).
func (s *Entropy) Scan(_ context.Context, data []byte, _ *types.File, _ config.Options, _ time.Time) (*Result, error) {
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	entropy := 0.0
	total := float64(len(data))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}

	return &Result{Output: map[string]any{"entropy": entropy}}, nil
}
