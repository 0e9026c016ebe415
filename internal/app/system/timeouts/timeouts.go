// internal/app/system/timeouts/timeouts.go

// Package timeouts centralizes the deadlines for datastore and probe
// operations so handlers do not scatter magic durations.
package timeouts

import "time"

// Ping bounds health-probe pings; Short covers single-document lookups;
// Medium covers multi-document reads and writes; Long covers
// archive-sized blob transfers.
const (
	Ping   = 2 * time.Second
	Short  = 5 * time.Second
	Medium = 10 * time.Second
	Long   = 30 * time.Second
)
