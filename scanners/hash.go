package scanners

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// defaultHashAlgorithms is the digest set computed when the assignment's
// options carry no "algorithms" list.
var defaultHashAlgorithms = []string{"md5", "sha256", "xxh64"}

// Hash digests the file content. Option "algorithms" selects a subset of
// md5, sha256 and xxh64.
type Hash struct{}

// NewHash constructs the ScanHash scanner.
func NewHash(_ *config.Config, _ *coordinator.Client) Scanner {
	return &Hash{}
}

// Scan computes the configured digests.
func (s *Hash) Scan(_ context.Context, data []byte, _ *types.File, opts config.Options, _ time.Time) (*Result, error) {
	algorithms := opts.StringSlice("algorithms")
	if len(algorithms) == 0 {
		algorithms = defaultHashAlgorithms
	}

	output := make(map[string]any, len(algorithms))
	for _, algo := range algorithms {
		switch algo {
		case "md5":
			sum := md5.Sum(data)
			output["md5"] = hex.EncodeToString(sum[:])
		case "sha256":
			sum := sha256.Sum256(data)
			output["sha256"] = hex.EncodeToString(sum[:])
		case "xxh64":
			output["xxh64"] = fmt.Sprintf("%016x", xxhash.Sum64(data))
		default:
			return nil, fmt.Errorf("unknown hash algorithm %q", algo)
		}
	}
	return &Result{Output: output}, nil
}
