package telemetry

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostInfo describes the machine the harness runs on. a fleet's behaviour
// depends heavily on it, so it travels with every event.
type HostInfo struct {
	Hostname  string `json:"hostname"`
	Platform  string `json:"platform"`
	CPUModel  string `json:"cpu_model,omitempty"`
	CPUCores  int    `json:"cpu_cores"`
	MemoryMiB uint64 `json:"memory_mib,omitempty"`
}

// ReadHostInfo collects what it can; fields it cannot read stay empty.
func ReadHostInfo() HostInfo {
	info := HostInfo{
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if hostInfo, err := host.Info(); err == nil {
		info.Hostname = hostInfo.Hostname
		info.Platform = hostInfo.Platform + " " + hostInfo.PlatformVersion + " " + runtime.GOARCH
	}
	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.MemoryMiB = memInfo.Total / (1024 * 1024)
	}

	return info
}
