package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/log"
	"github.com/strelka-go/backend/metrics"
	"github.com/strelka-go/backend/scanners"
	"github.com/strelka-go/backend/tasting"
	"github.com/strelka-go/backend/types"
)

// ErrRequestExpired surfaces when the enclosing request's wall-clock budget
// fires during distribution. It aborts the whole request; the FIN terminator
// is never emitted and the front-end notices by its own timeout.
var ErrRequestExpired = errors.New("request budget expired")

// Distributor runs one file node through classification and its assigned
// scanners, emits the node's event, and surfaces extracted children.
type Distributor struct {
	cfg       *config.Config
	coord     *coordinator.Client
	taster    *tasting.Taster
	registry  *Registry
	logger    *log.Logger
	collector *metrics.Collector
}

// NewDistributor wires a distributor. collector may be nil.
func NewDistributor(cfg *config.Config, coord *coordinator.Client, taster *tasting.Taster, registry *Registry, logger *log.Logger, collector *metrics.Collector) *Distributor {
	return &Distributor{
		cfg:       cfg,
		coord:     coord,
		taster:    taster,
		registry:  registry,
		logger:    logger,
		collector: collector,
	}
}

// Distribute processes one file node under the per-file distribution budget
// and returns the children to recurse into. ctx is the request context; its
// deadline is the request's expire-at.
//
// A distribution timeout is contained: the node's event may be lost, but the
// children collected so far are still returned for recursion under the
// still-live request budget. A request timeout or coordinator fault aborts
// the node with an error.
func (d *Distributor) Distribute(ctx context.Context, f *types.File, rootID string, expireAt time.Time) ([]*types.File, error) {
	if f.Depth > d.cfg.Limits.MaxDepth {
		d.logger.Debug("file exceeds max depth, skipping", map[string]any{
			"uid":   f.UID,
			"depth": f.Depth,
		})
		d.collector.IncDepthSkips()
		return nil, nil
	}

	distCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.Limits.Distribution)*time.Second)
	defer cancel()

	data, err := d.coord.DrainBytes(distCtx, f.Pointer)
	if err != nil {
		return d.interrupted(ctx, distCtx, f, nil, err, "drain")
	}

	mime, ruleHits := d.taster.Taste(data)
	f.Flavors.Add(types.FlavorMime, mime)
	f.Flavors.Add(types.FlavorYara, ruleHits...)

	assignments := AssignAll(d.cfg.Scanners, f)
	names := make([]string, 0, len(assignments))
	for _, a := range assignments {
		names = append(names, a.Name)
	}

	scan := make(map[string]any, len(assignments))
	var children []*types.File

	for _, a := range assignments {
		if err := distCtx.Err(); err != nil {
			return d.interrupted(ctx, distCtx, f, children, err, a.Name)
		}

		sc, err := d.registry.Get(a.Name)
		if err != nil {
			// Soft failure: a missing plugin must not fail the request.
			d.logger.Warn("scanner unavailable, skipping", map[string]any{
				"scanner": a.Name,
				"error":   err.Error(),
			})
			d.collector.IncScannersMissing()
			continue
		}

		result, err := d.safeScan(distCtx, sc, data, f, a.Options, expireAt)
		if err != nil {
			if ctx.Err() != nil || distCtx.Err() != nil {
				return d.interrupted(ctx, distCtx, f, children, err, a.Name)
			}
			d.logger.Error("scanner fault, skipping", map[string]any{
				"scanner": a.Name,
				"uid":     f.UID,
				"error":   err.Error(),
			})
			d.collector.IncScannerFaults()
			continue
		}

		if result != nil {
			if result.Output != nil {
				scan[a.Name] = result.Output
			}
			children = append(children, result.Children...)
		}
	}

	if err := distCtx.Err(); err != nil {
		return d.interrupted(ctx, distCtx, f, children, err, "emit")
	}

	event := &types.Event{
		File: fileRecord(f, rootID, len(data), names),
		Scan: scan,
	}
	payload, err := event.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode event for %s: %w", f.UID, err)
	}
	if err := d.coord.Emit(distCtx, rootID, payload, expireAt); err != nil {
		return d.interrupted(ctx, distCtx, f, children, err, "emit")
	}

	d.collector.IncFilesScanned()
	d.collector.IncEventsEmitted()
	return children, nil
}

// interrupted classifies a distribution failure. Request expiry propagates;
// a distribution timeout is logged and contained, handing back the children
// collected so far. Anything else (a coordinator fault, in practice)
// propagates so the worker abandons the request.
func (d *Distributor) interrupted(ctx, distCtx context.Context, f *types.File, children []*types.File, err error, stage string) ([]*types.File, error) {
	if ctx.Err() != nil {
		return nil, ErrRequestExpired
	}
	if distCtx.Err() != nil {
		d.logger.Warn("distribution timed out", map[string]any{
			"uid":   f.UID,
			"depth": f.Depth,
			"stage": stage,
		})
		d.collector.IncDistributionTimeouts()
		return children, nil
	}
	return nil, fmt.Errorf("distribute %s at %s: %w", f.UID, stage, err)
}

// safeScan invokes one scanner, converting panics into scanner faults so a
// misbehaving plugin cannot take down the worker.
func (d *Distributor) safeScan(ctx context.Context, sc scanners.Scanner, data []byte, f *types.File, opts config.Options, expireAt time.Time) (result *scanners.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scanner panic: %v\n%s", r, debug.Stack())
		}
	}()
	return sc.Scan(ctx, data, f, opts, expireAt)
}

// fileRecord builds the event's file sub-document. The tree is anchored to
// the root id: the root node reports the root id as its own node id, and
// depth-1 children report it as their parent, so consumers can join a whole
// request on one key.
func fileRecord(f *types.File, rootID string, size int, assigned []string) types.FileRecord {
	node := f.UID
	if f.Depth == 0 {
		node = rootID
	}

	var parent *string
	switch {
	case f.Depth == 1:
		root := rootID
		parent = &root
	case f.Parent != "":
		p := f.Parent
		parent = &p
	}

	return types.FileRecord{
		Depth:    f.Depth,
		Name:     f.Name,
		Flavors:  f.Flavors,
		Scanners: assigned,
		Size:     size,
		Source:   f.Source,
		Tree: types.Tree{
			Node:   node,
			Parent: parent,
			Root:   rootID,
		},
	}
}
