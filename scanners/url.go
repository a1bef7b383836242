package scanners

import (
	"context"
	"regexp"
	"sort"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

var urlPattern = regexp.MustCompile(`(?i)\bhttps?://[^\s"'<>\\]+`)

// URL extracts HTTP(S) URLs from the file content.
type URL struct{}

// NewURL constructs the ScanUrl scanner.
func NewURL(_ *config.Config, _ *coordinator.Client) Scanner {
	return &URL{}
}

// Scan returns the sorted, de-duplicated URLs found in the content.
func (s *URL) Scan(_ context.Context, data []byte, _ *types.File, _ config.Options, _ time.Time) (*Result, error) {
	matches := urlPattern.FindAll(data, -1)

	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, m := range matches {
		u := string(m)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		urls = append(urls, u)
	}
	sort.Strings(urls)

	return &Result{Output: map[string]any{
		"urls":  urls,
		"total": len(urls),
	}}, nil
}
