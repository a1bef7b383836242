// Package metrics provides per-worker metrics collection.
//
// The Collector accumulates counters over one worker lifetime (pop-to-retire)
// and is a leaf package with no internal dependencies. The worker logs a
// snapshot when it retires; a supervisor restarting workers gets one summary
// line per generation.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all worker counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Request lifecycle
	RequestsClaimed   int64
	RequestsCompleted int64
	RequestsTimedOut  int64
	RequestsAbandoned int64
	TasksExpired      int64

	// Per-file distribution
	FilesScanned         int64
	EventsEmitted        int64
	DepthSkips           int64
	DistributionTimeouts int64

	// Scanner dispatch
	ScannerFaults   int64
	ScannersMissing int64

	// Coordinator
	CoordinatorErrors int64
}

// Collector accumulates metrics during a single worker lifetime.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	requestsClaimed   int64
	requestsCompleted int64
	requestsTimedOut  int64
	requestsAbandoned int64
	tasksExpired      int64

	filesScanned         int64
	eventsEmitted        int64
	depthSkips           int64
	distributionTimeouts int64

	scannerFaults   int64
	scannersMissing int64

	coordinatorErrors int64
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// IncRequestsClaimed records a request popped from the task queue.
func (c *Collector) IncRequestsClaimed() {
	if c == nil {
		return
	}
	c.inc(&c.requestsClaimed)
}

// IncRequestsCompleted records a request that ran to FIN.
func (c *Collector) IncRequestsCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.requestsCompleted)
}

// IncRequestsTimedOut records a request abandoned on its wall-clock budget.
func (c *Collector) IncRequestsTimedOut() {
	if c == nil {
		return
	}
	c.inc(&c.requestsTimedOut)
}

// IncRequestsAbandoned records a request abandoned on a non-timeout error.
func (c *Collector) IncRequestsAbandoned() {
	if c == nil {
		return
	}
	c.inc(&c.requestsAbandoned)
}

// IncTasksExpired records a task already past its deadline when popped.
func (c *Collector) IncTasksExpired() {
	if c == nil {
		return
	}
	c.inc(&c.tasksExpired)
}

// IncFilesScanned records one file node run through distribution.
func (c *Collector) IncFilesScanned() {
	if c == nil {
		return
	}
	c.inc(&c.filesScanned)
}

// IncEventsEmitted records one event record pushed to the coordinator.
func (c *Collector) IncEventsEmitted() {
	if c == nil {
		return
	}
	c.inc(&c.eventsEmitted)
}

// IncDepthSkips records a file node skipped for exceeding max depth.
func (c *Collector) IncDepthSkips() {
	if c == nil {
		return
	}
	c.inc(&c.depthSkips)
}

// IncDistributionTimeouts records a file node whose scan budget expired.
func (c *Collector) IncDistributionTimeouts() {
	if c == nil {
		return
	}
	c.inc(&c.distributionTimeouts)
}

// IncScannerFaults records an individual scanner error or panic.
func (c *Collector) IncScannerFaults() {
	if c == nil {
		return
	}
	c.inc(&c.scannerFaults)
}

// IncScannersMissing records an assigned scanner with no registered plugin.
func (c *Collector) IncScannersMissing() {
	if c == nil {
		return
	}
	c.inc(&c.scannersMissing)
}

// IncCoordinatorErrors records a coordinator I/O failure.
func (c *Collector) IncCoordinatorErrors() {
	if c == nil {
		return
	}
	c.inc(&c.coordinatorErrors)
}

// Snapshot returns a copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		RequestsClaimed:      c.requestsClaimed,
		RequestsCompleted:    c.requestsCompleted,
		RequestsTimedOut:     c.requestsTimedOut,
		RequestsAbandoned:    c.requestsAbandoned,
		TasksExpired:         c.tasksExpired,
		FilesScanned:         c.filesScanned,
		EventsEmitted:        c.eventsEmitted,
		DepthSkips:           c.depthSkips,
		DistributionTimeouts: c.distributionTimeouts,
		ScannerFaults:        c.scannerFaults,
		ScannersMissing:      c.scannersMissing,
		CoordinatorErrors:    c.coordinatorErrors,
	}
}

// Fields returns the snapshot as a log-field map.
func (s Snapshot) Fields() map[string]any {
	return map[string]any{
		"requests_claimed":      s.RequestsClaimed,
		"requests_completed":    s.RequestsCompleted,
		"requests_timed_out":    s.RequestsTimedOut,
		"requests_abandoned":    s.RequestsAbandoned,
		"tasks_expired":         s.TasksExpired,
		"files_scanned":         s.FilesScanned,
		"events_emitted":        s.EventsEmitted,
		"depth_skips":           s.DepthSkips,
		"distribution_timeouts": s.DistributionTimeouts,
		"scanner_faults":        s.ScannerFaults,
		"scanners_missing":      s.ScannersMissing,
		"coordinator_errors":    s.CoordinatorErrors,
	}
}
