//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux build of the platform.cpus debug probe, which reports
// runtime.NumCPU(). ControlAdapter registers it at construction and it
// appears in Stats as debug.platform.cpus; nothing in this module reads
// it to size the executor.

package control

import (
	"runtime"
)

// RegisterPlatformProbes exposes the CPU count an executor sizing
// policy would read at startup.
func RegisterPlatformProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
}
