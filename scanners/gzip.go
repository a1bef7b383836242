package scanners

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// Gzip decompresses a gzip member and extracts it as one child file node.
type Gzip struct {
	coord *coordinator.Client
}

// NewGzip constructs the ScanGzip scanner.
func NewGzip(_ *config.Config, coord *coordinator.Client) Scanner {
	return &Gzip{coord: coord}
}

// Scan decompresses the member. The child's name comes from the gzip header
// when present, else from the parent's name with a .gz suffix stripped.
func (s *Gzip) Scan(ctx context.Context, data []byte, f *types.File, _ config.Options, expireAt time.Time) (*Result, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("not a readable gzip: %w", err)
	}
	defer func() { _ = reader.Close() }()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}

	name := reader.Name
	if name == "" {
		name = strings.TrimSuffix(f.Name, ".gz")
	}

	child, err := newChild(ctx, s.coord, "ScanGzip", name, decompressed, expireAt)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output: map[string]any{
			"size_compressed":   len(data),
			"size_decompressed": len(decompressed),
		},
		Children: []*types.File{child},
	}, nil
}
