package datastructure

import (
	"sync/atomic"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/util"
)

type trafficEntry struct {
	congestion float64
	updatedAt  time.Time
}

// TrafficState per-edge congestion in [0,1]. each slot is swapped atomically, so readers see
// either the previous or the new entry of an edge and never a torn one. no cross-edge ordering
// is guaranteed.
type TrafficState struct {
	entries []atomic.Pointer[trafficEntry]
	epoch   atomic.Uint64
}

func NewTrafficState(numEdges int) *TrafficState {
	return &TrafficState{
		entries: make([]atomic.Pointer[trafficEntry], numEdges),
	}
}

func (ts *TrafficState) Len() int {
	return len(ts.entries)
}

// Congestion 0 for edges without an entry.
func (ts *TrafficState) Congestion(e Index) float64 {
	if int(e) >= len(ts.entries) {
		return 0
	}
	entry := ts.entries[e].Load()
	if entry == nil {
		return 0
	}
	return entry.congestion
}

func (ts *TrafficState) Entry(e Index) (float64, time.Time, bool) {
	if int(e) >= len(ts.entries) {
		return 0, time.Time{}, false
	}
	entry := ts.entries[e].Load()
	if entry == nil {
		return 0, time.Time{}, false
	}
	return entry.congestion, entry.updatedAt, true
}

func (ts *TrafficState) set(e Index, congestion float64, at time.Time) {
	if int(e) >= len(ts.entries) {
		return
	}
	ts.entries[e].Store(&trafficEntry{
		congestion: util.Clamp(congestion, 0.0, 1.0),
		updatedAt:  at,
	})
}

func (ts *TrafficState) bumpEpoch() {
	ts.epoch.Add(1)
}

// Epoch number of update batches applied so far. used to invalidate cached routes.
func (ts *TrafficState) Epoch() uint64 {
	return ts.epoch.Load()
}
