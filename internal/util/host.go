package util

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo holds static information about the host system.
type SystemInfo struct {
	Hostname     string `json:"hostname"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	CPUModel     string `json:"cpu_model"`
	CPUThreads   int    `json:"cpu_threads"`
	TotalMemory  uint64 `json:"total_memory_mb"`
}

// GetSystemInfo gathers system information. Fields that cannot be read are
// left empty.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		Architecture: runtime.GOARCH,
		CPUThreads:   runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / (1024 * 1024)
	}

	return info
}

// HostStats is a point-in-time resource sample.
type HostStats struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	Load1         float64   `json:"load_1"`
	UptimeSec     uint64    `json:"uptime_sec"`
	SampledAt     time.Time `json:"sampled_at"`
}

// SampleHostStats reads CPU, memory, disk usage of diskPath, load and
// uptime. Only the CPU and memory readings are mandatory.
func SampleHostStats(diskPath string) (HostStats, error) {
	stats := HostStats{SampledAt: time.Now()}

	percentages, err := cpu.Percent(0, false)
	if err != nil {
		return stats, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percentages) > 0 {
		stats.CPUPercent = percentages[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		return stats, fmt.Errorf("failed to read memory usage: %w", err)
	}
	stats.MemoryUsedMB = memInfo.Used / (1024 * 1024)
	stats.MemoryTotalMB = memInfo.Total / (1024 * 1024)
	stats.MemoryPercent = memInfo.UsedPercent

	if diskPath != "" {
		if usage, err := disk.Usage(diskPath); err == nil {
			stats.DiskPercent = usage.UsedPercent
		}
	}
	if avg, err := load.Avg(); err == nil {
		stats.Load1 = avg.Load1
	}
	if uptime, err := host.Uptime(); err == nil {
		stats.UptimeSec = uptime
	}

	return stats, nil
}

// FileExists checks if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
