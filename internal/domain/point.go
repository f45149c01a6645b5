package domain

// Point is the canonical unit of persisted telemetry in Historian: one
// timestamped set of fields for one series, addressed by measurement + tags.
type Point struct {
	Measurement string                 `json:"measurement"`
	Tags        map[string]string      `json:"tags"`
	Time        int64                  `json:"time"` // seconds since epoch
	Fields      map[string]interface{} `json:"fields"`
}

// Tag is one logged scalar source: an opaque reader address plus a display label.
type Tag struct {
	NodeID string `json:"nodeid"`
	Label  string `json:"label"`
}

// LoopAssignment binds a PID loop to its three correlated sources
// (process value, set point, control output). A loop is only logged when all
// three node ids are configured.
type LoopAssignment struct {
	LoopID    string `json:"loop_id"`
	MachineID string `json:"machine_id"`
	PVNodeID  string `json:"pv_nodeid"`
	SPNodeID  string `json:"sp_nodeid"`
	CONodeID  string `json:"co_nodeid"`
	PVLabel   string `json:"pv_label,omitempty"`
	SPLabel   string `json:"sp_label,omitempty"`
	COLabel   string `json:"co_label,omitempty"`
}

// Complete reports whether the assignment carries all three node ids.
func (l LoopAssignment) Complete() bool {
	return l.LoopID != "" && l.PVNodeID != "" && l.SPNodeID != "" && l.CONodeID != ""
}
