package monitor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

const bytesPerMB = 1024 * 1024

// Usage is one resource sample of the process.
type Usage struct {
	RSSMB      float64
	VMSMB      float64
	CPUPercent float64
}

// Sampler reads the current resource usage.
type Sampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// ProcessSampler samples a process through gopsutil.
type ProcessSampler struct {
	proc      *process.Process
	cpuWindow time.Duration
}

// NewProcessSampler samples the current process. CPU usage is measured over
// cpuWindow; zero means one second.
func NewProcessSampler(cpuWindow time.Duration) (*ProcessSampler, error) {
	if cpuWindow <= 0 {
		cpuWindow = time.Second
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("monitor: open process: %w", err)
	}
	return &ProcessSampler{proc: proc, cpuWindow: cpuWindow}, nil
}

// Sample blocks for the CPU window.
func (s *ProcessSampler) Sample(ctx context.Context) (Usage, error) {
	mem, err := s.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: memory info: %w", err)
	}
	cpu, err := s.proc.PercentWithContext(ctx, s.cpuWindow)
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: cpu percent: %w", err)
	}
	return Usage{
		RSSMB:      float64(mem.RSS) / bytesPerMB,
		VMSMB:      float64(mem.VMS) / bytesPerMB,
		CPUPercent: cpu,
	}, nil
}
