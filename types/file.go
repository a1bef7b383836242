package types

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Flavor namespaces. Each file node carries zero or more string labels per
// namespace: producer-supplied hints, MIME sniffing results, and rule-matcher
// hits respectively.
const (
	FlavorExternal = "external"
	FlavorMime     = "mime"
	FlavorYara     = "yara"
)

// Flavors maps a classifier namespace to its sorted, de-duplicated labels.
// Empty namespaces are never stored, so the zero-length map marshals to {}.
type Flavors map[string][]string

// Add merges labels into the given namespace, de-duplicating and keeping the
// label list sorted for deterministic event output.
func (f Flavors) Add(namespace string, labels ...string) {
	if len(labels) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(f[namespace])+len(labels))
	merged := f[namespace][:0:0]
	for _, l := range append(append([]string{}, f[namespace]...), labels...) {
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		merged = append(merged, l)
	}
	if len(merged) == 0 {
		return
	}
	sort.Strings(merged)
	f[namespace] = merged
}

// Union returns the flat set of all labels across all namespaces.
// Used by the assignment engine, which matches flavors regardless of origin.
func (f Flavors) Union() map[string]struct{} {
	union := make(map[string]struct{})
	for _, labels := range f {
		for _, l := range labels {
			union[l] = struct{}{}
		}
	}
	return union
}

// File is the in-memory descriptor of one file node carried through the
// recursive decomposition of a request.
type File struct {
	// UID is a fresh opaque identifier for this node.
	UID string
	// Pointer is the key suffix where the node's bytes live in the
	// coordinator (data:{pointer}). Equals the root id for the root node;
	// for children it is set by the scanner that extracted them.
	Pointer string
	// Parent is the UID of the parent node. Empty for the root.
	Parent string
	// Depth is 0 for the root; children are parent depth + 1.
	Depth int
	// Name is the optional filename, used for name-based assignment.
	Name string
	// Source is the optional source label: the scanner that extracted this
	// node, or a producer-supplied label for the root.
	Source string
	// Flavors holds the classification labels per namespace.
	Flavors Flavors
}

// NewFile creates a file node with a fresh UID and empty flavor map.
func NewFile(pointer string) *File {
	return &File{
		UID:     uuid.New().String(),
		Pointer: pointer,
		Flavors: make(Flavors),
	}
}

// Task is one claimed entry from the shared priority queue.
type Task struct {
	// RootID is the request's root id, namespace for its event and data keys.
	RootID string
	// ExpireAt is the absolute wall-clock deadline set by the producer.
	ExpireAt time.Time
}
