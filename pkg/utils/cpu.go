package utils

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/cpu"
)

// CPUSampler returns the current total CPU usage in percent.
type CPUSampler func(ctx context.Context) (float64, error)

// SampleCPU measures usage over a short window.
func SampleCPU(ctx context.Context) (float64, error) {
	usage, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(usage) == 0 {
		return 0, nil
	}
	return usage[0], nil
}

// CheckCPUUsage reports whether the host is below maxCPUUsage. A failed sample does not
// block work.
func CheckCPUUsage(ctx context.Context, sample CPUSampler, maxCPUUsage float64) (bool, float64) {
	usage, err := sample(ctx)
	if err != nil {
		return true, 0
	}
	return usage <= maxCPUUsage, usage
}
