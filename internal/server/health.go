package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/flowgate/n8n-mcp/internal/utils"
)

// healthResponse is the /health body. The shape is part of the deploy
// contract: platform checks read status and uptime from it.
type healthResponse struct {
	Status        string       `json:"status"`
	Version       string       `json:"version"`
	Mode          string       `json:"mode"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Memory        memoryStats  `json:"memory"`
	Sessions      sessionStats `json:"sessions"`
}

type memoryStats struct {
	AllocMB      uint64 `json:"alloc_mb"`
	TotalAllocMB uint64 `json:"total_alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
}

type sessionStats struct {
	Active int `json:"active"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	utils.WriteJSON(w, healthResponse{
		Status:        "ok",
		Version:       s.cfg.Server.Version,
		Mode:          string(s.cfg.Server.Mode),
		UptimeSeconds: int64(time.Since(s.startTime) / time.Second),
		Memory: memoryStats{
			AllocMB:      mem.Alloc / 1024 / 1024,
			TotalAllocMB: mem.TotalAlloc / 1024 / 1024,
			SysMB:        mem.Sys / 1024 / 1024,
			NumGC:        mem.NumGC,
		},
		Sessions: sessionStats{Active: s.sessions.Active()},
	})
}
