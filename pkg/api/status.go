package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/conductor-telemetry/conductor/pkg/codec"
)

var startTime = time.Now()

// StatusResponse describes the running server and its host.
type StatusResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Producers     int     `json:"producers"`
	GoVersion     string  `json:"go_version"`
	NumGoroutine  int     `json:"num_goroutine"`
	Hostname      string  `json:"hostname,omitempty"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
	MemoryUsedMB  uint64  `json:"memory_used_mb,omitempty"`
	MemoryTotalMB uint64  `json:"memory_total_mb,omitempty"`
}

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Status reports server and host health information.
func (h *ProducerHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:        "ok",
		Version:       Version,
		UptimeSeconds: time.Since(startTime).Seconds(),
		GoVersion:     runtime.Version(),
		NumGoroutine:  runtime.NumGoroutine(),
	}

	if producers, err := h.store.ListProducers(); err == nil {
		resp.Producers = len(producers)
	}

	// Host stats are best effort; gopsutil failures never fail the endpoint.
	if info, err := host.Info(); err == nil {
		resp.Hostname = info.Hostname
	}
	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		resp.CPUPercent = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
		resp.MemoryUsedMB = vm.Used / 1024 / 1024
		resp.MemoryTotalMB = vm.Total / 1024 / 1024
	}

	codec.Write(w, codec.JSON, http.StatusOK, resp)
}
