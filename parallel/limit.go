package parallel

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// Limit reports the default concurrency limit for ForEach. It prefers the
// number of physical cores reported by cpuid, as batch-level numeric work
// gains nothing from hyperthread siblings fighting over the FPU.
func Limit() int {
	if n := cpuid.CPU.PhysicalCores; n > 0 {
		return n
	}
	return runtime.NumCPU()
}
