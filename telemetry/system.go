package telemetry

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/mem"
)

// SystemSnapshot is the host resource slice of a StatsMessage.
type SystemSnapshot struct {
	MemoryUsedGB  float64 `json:"memory_used_gb"`
	MemoryTotalGB float64 `json:"memory_total_gb"`
	MemoryPercent float64 `json:"memory_percent"`
	Goroutines    int     `json:"goroutines"`
}

// CaptureSystem samples host memory. Errors degrade to zero figures so
// a broken probe never breaks the stats stream.
func CaptureSystem() SystemSnapshot {
	snap := SystemSnapshot{Goroutines: runtime.NumGoroutine()}

	v, err := mem.VirtualMemory()
	if err != nil || v.Total == 0 {
		return snap
	}

	const gb = 1024 * 1024 * 1024
	snap.MemoryTotalGB = float64(v.Total) / gb
	snap.MemoryUsedGB = float64(v.Total-v.Available) / gb
	snap.MemoryPercent = snap.MemoryUsedGB / snap.MemoryTotalGB * 100
	return snap
}
