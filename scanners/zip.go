package scanners

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// defaultExtractLimit caps how many child files an archive scanner extracts
// from one node when the assignment's options carry no "limit".
const defaultExtractLimit = 100

// Zip lists a ZIP archive and extracts its entries as child file nodes.
type Zip struct {
	coord *coordinator.Client
}

// NewZip constructs the ScanZip scanner.
func NewZip(_ *config.Config, coord *coordinator.Client) Scanner {
	return &Zip{coord: coord}
}

// Scan extracts up to limit entries. Encrypted or individually corrupt
// entries are counted and skipped; one bad entry does not fail the archive.
func (s *Zip) Scan(ctx context.Context, data []byte, _ *types.File, opts config.Options, expireAt time.Time) (*Result, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a readable zip: %w", err)
	}

	limit := opts.Int("limit", defaultExtractLimit)

	result := &Result{Output: map[string]any{}}
	listing := make([]map[string]any, 0, len(reader.File))
	extracted := 0
	skipped := 0

	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		listing = append(listing, map[string]any{
			"name": entry.Name,
			"size": int64(entry.UncompressedSize64),
		})

		if entry.FileInfo().IsDir() || extracted >= limit {
			continue
		}

		content, err := readZipEntry(entry)
		if err != nil {
			skipped++
			continue
		}

		child, err := newChild(ctx, s.coord, "ScanZip", entry.Name, content, expireAt)
		if err != nil {
			return nil, err
		}
		result.Children = append(result.Children, child)
		extracted++
	}

	result.Output["total"] = len(reader.File)
	result.Output["extracted"] = extracted
	result.Output["skipped"] = skipped
	result.Output["files"] = listing
	return result, nil
}

func readZipEntry(entry *zip.File) ([]byte, error) {
	rc, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
