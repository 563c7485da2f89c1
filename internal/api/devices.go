package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/hubspace-bridge/internal/device"
)

// handleListDevices returns the cloud devices known to the bridge.
// Supports optional ?class= and ?room= filters.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	class := r.URL.Query().Get("class")
	room := r.URL.Query().Get("room")

	devices := make([]device.Device, 0)
	for _, d := range s.bridge.Devices() {
		if class != "" && d.DeviceClass != class {
			continue
		}
		if room != "" && d.RoomName != room {
			continue
		}
		devices = append(devices, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleDiagnostics returns the anonymised device dump. With ?write=true
// the dump is also written to the configured diagnostics file.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	dumps, err := s.bridge.Diagnostics()
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	resp := map[string]any{"devices": dumps, "count": len(dumps)}

	if raw := r.URL.Query().Get("write"); raw != "" {
		write, parseErr := strconv.ParseBool(raw)
		if parseErr != nil {
			writeBadRequest(w, "invalid write flag")
			return
		}
		if write {
			path, writeErr := s.bridge.WriteDiagnostics("")
			if writeErr != nil {
				s.logger.Error("writing diagnostics", "error", writeErr)
				writeBridgeError(w, writeErr)
				return
			}
			resp["path"] = path
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
