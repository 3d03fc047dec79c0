//go:build windows
// +build windows

// control/platform_windows.go
// Author: momentics <momentics@gmail.com>
//
// Windows build of the same platform.cpus probe platform_linux.go
// exposes, kept separate because transport has no IOCP-backed listener
// yet and only BlockingDriver runs here.

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
