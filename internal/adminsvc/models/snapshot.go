package models

import "time"

// Snapshot is the full serialized dataset as written to the share. It is
// the unit of synchronization: instances exchange whole snapshots, never
// individual records.
type Snapshot struct {
	Employees   []Employee   `json:"employees"`
	Groups      []Group      `json:"groups"`
	SpecialDays []SpecialDay `json:"special_days"`
	Version     int64        `json:"version"`
	LastUpdated time.Time    `json:"last_updated"`
}
