// Package lifecycle tracks the process phase reported by the health endpoint.
package lifecycle

import "sync/atomic"

// Phase is the process phase. The zero value is PhaseStarting.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseShuttingDown
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseReady:
		return "ready"
	case PhaseShuttingDown:
		return "shutting-down"
	default:
		return "unknown"
	}
}

var phase atomic.Int32

// MarkReady records that the startup flow has run. It does not leave shutting-down.
func MarkReady() {
	phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseReady))
}

// MarkShuttingDown is called when SIGTERM/SIGINT is received. Health returns 503 from then on.
func MarkShuttingDown() {
	phase.Store(int32(PhaseShuttingDown))
}

// Current returns the process phase.
func Current() Phase {
	return Phase(phase.Load())
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return Current() == PhaseShuttingDown
}

// Reset returns to PhaseStarting. Tests only.
func Reset() {
	phase.Store(int32(PhaseStarting))
}
