package models

import "time"

// SyncRecord tracks, per sort key, when the partition last changed.
// Clients poll it to refresh only what moved.
type SyncRecord struct {
	Timestamps map[string]time.Time `json:"timestamps"`
}

// Touch records a modification of operation at t.
func (s *SyncRecord) Touch(operation string, t time.Time) {
	if s.Timestamps == nil {
		s.Timestamps = make(map[string]time.Time)
	}
	s.Timestamps[operation] = t
}
