package types

import "encoding/json"

// FIN is the sentinel record terminating a request's event stream.
// It is pushed verbatim (not JSON-encoded) as the final list entry.
const FIN = "FIN"

// Tree anchors a file node to the request it belongs to. The root node's
// Node field carries the root id itself, and every depth-1 child's Parent
// carries the root id, so consumers can join the whole tree on one key even
// though interior nodes use generated uids.
type Tree struct {
	Node   string  `json:"node"`
	Parent *string `json:"parent"`
	Root   string  `json:"root"`
}

// FileRecord is the file sub-document of an event.
type FileRecord struct {
	Depth    int      `json:"depth"`
	Name     string   `json:"name"`
	Flavors  Flavors  `json:"flavors"`
	Scanners []string `json:"scanners"`
	Size     int      `json:"size"`
	Source   string   `json:"source"`
	Tree     Tree     `json:"tree"`
}

// Event is one structured record pushed to event:{root_id}: the file
// descriptor plus the merged per-scanner outputs, keyed by scanner name.
type Event struct {
	File FileRecord     `json:"file"`
	Scan map[string]any `json:"scan"`
}

// Encode serializes the event as a single JSON text record.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
