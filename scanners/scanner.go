// Package scanners holds the scanner plugin contract and the built-in
// scanner suite.
//
// A scanner receives one file node's full bytes and produces a name-keyed
// output summary, optionally extracting child file nodes. Child bytes are
// pushed to the coordinator under the child's own pointer before the result
// returns, so the distributor can drain them like any other node.
package scanners

import (
	"context"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/types"
)

// Result is the outcome of one scanner invocation.
type Result struct {
	// Output is the scanner's summary, merged into the event's scan map
	// under the scanner's registry name.
	Output map[string]any
	// Children are freshly extracted file nodes. Their Pointer keys are
	// already populated in the coordinator; Parent and Depth are filled in
	// by the distributor.
	Children []*types.File
}

// Scanner is the uniform scan contract every plugin implements.
//
// Implementations must self-bound against expireAt and honor ctx at I/O
// boundaries; a scanner that blocks past its deadline degrades the request's
// timeout to the next cooperative check-in.
type Scanner interface {
	Scan(ctx context.Context, data []byte, f *types.File, opts config.Options, expireAt time.Time) (*Result, error)
}

// Factory constructs a scanner instance. Construction receives the full
// backend config and the coordinator client; instances are created lazily on
// first use and reused for the lifetime of the worker.
type Factory func(cfg *config.Config, coord *coordinator.Client) Scanner

// Builtins returns the static name-to-constructor registry of the built-in
// scanner suite. Config refers to these names verbatim.
func Builtins() map[string]Factory {
	return map[string]Factory{
		"ScanEntropy": NewEntropy,
		"ScanFooter":  NewFooter,
		"ScanGzip":    NewGzip,
		"ScanHash":    NewHash,
		"ScanHeader":  NewHeader,
		"ScanTar":     NewTar,
		"ScanUrl":     NewURL,
		"ScanZip":     NewZip,
	}
}

// newChild creates a child file node extracted by the named scanner and
// pushes its bytes to the coordinator under the child's uid, stamped with the
// request's expire-at.
func newChild(ctx context.Context, coord *coordinator.Client, scanner, name string, data []byte, expireAt time.Time) (*types.File, error) {
	child := types.NewFile("")
	child.Pointer = child.UID
	child.Name = name
	child.Source = scanner

	if err := coord.PushChunks(ctx, child.Pointer, [][]byte{data}, expireAt); err != nil {
		return nil, err
	}
	return child, nil
}
