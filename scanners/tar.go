package scanners

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// Tar lists a tar archive and extracts regular-file entries as children.
type Tar struct {
	coord *coordinator.Client
}

// NewTar constructs the ScanTar scanner.
func NewTar(_ *config.Config, coord *coordinator.Client) Scanner {
	return &Tar{coord: coord}
}

// Scan walks the archive. A truncated archive yields the entries read so
// far rather than an error; producers routinely enqueue partial captures.
func (s *Tar) Scan(ctx context.Context, data []byte, _ *types.File, opts config.Options, expireAt time.Time) (*Result, error) {
	reader := tar.NewReader(bytes.NewReader(data))
	limit := opts.Int("limit", defaultExtractLimit)

	result := &Result{Output: map[string]any{}}
	var names []string
	extracted := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Truncated or trailing garbage: keep what was read.
			break
		}

		names = append(names, header.Name)
		if header.Typeflag != tar.TypeReg || extracted >= limit {
			continue
		}

		content, err := io.ReadAll(reader)
		if err != nil {
			continue
		}

		child, err := newChild(ctx, s.coord, "ScanTar", header.Name, content, expireAt)
		if err != nil {
			return nil, err
		}
		result.Children = append(result.Children, child)
		extracted++
	}

	result.Output["total"] = len(names)
	result.Output["extracted"] = extracted
	result.Output["files"] = names
	return result, nil
}
