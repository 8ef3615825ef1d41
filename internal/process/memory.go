package process

import (
	"runtime"

	"github.com/prometheus/procfs"
)

// ResidentMemory returns the resident set size of the current process in bytes.
// When /proc is unavailable it falls back to the memory obtained from the OS by the Go runtime.
func ResidentMemory() uint64 {
	if p, err := procfs.Self(); err == nil {
		if stat, err := p.Stat(); err == nil {
			if rss := stat.ResidentMemory(); rss > 0 {
				return uint64(rss)
			}
		}
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.Sys
}
