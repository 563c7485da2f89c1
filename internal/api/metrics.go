package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Cloud         CloudMetrics   `json:"cloud"`
	Entities      EntityMetrics  `json:"entities"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// CloudMetrics describes the last poll of the cloud account.
type CloudMetrics struct {
	Ready      bool   `json:"ready"`
	Devices    int    `json:"devices"`
	LastUpdate string `json:"last_update,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// EntityMetrics counts entities by kind and availability.
type EntityMetrics struct {
	Total       int            `json:"total"`
	Unavailable int            `json:"unavailable"`
	ByKind      map[string]int `json:"by_kind"`
}

// handleMetrics returns runtime and bridge statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	st := s.bridge.Status()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		MQTT: MQTTMetrics{
			Connected: st.MQTTConnected,
		},
		Cloud: CloudMetrics{
			Ready:     st.Ready,
			Devices:   len(s.bridge.Devices()),
			LastError: st.LastError,
		},
		Entities: EntityMetrics{
			ByKind: make(map[string]int),
		},
	}
	if !st.LastUpdate.IsZero() {
		metrics.Cloud.LastUpdate = st.LastUpdate.UTC().Format(time.RFC3339)
	}

	for _, snap := range s.bridge.Entities() {
		metrics.Entities.Total++
		metrics.Entities.ByKind[string(snap.Kind)]++
		if !snap.Available {
			metrics.Entities.Unavailable++
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
