package extproc

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// memorySummary returns a compact host-memory description for failure logs,
// or "unavailable" when the platform query fails.
func memorySummary() string {
	v, err := mem.VirtualMemory()
	if err != nil {
		return "unavailable"
	}
	return fmt.Sprintf("%.1f%% used (%d MB available of %d MB)",
		v.UsedPercent, v.Available/1024/1024, v.Total/1024/1024)
}
