package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/hubspace-bridge/internal/bridge"
	"github.com/nerrad567/hubspace-bridge/internal/entity"
)

// maxQueryParamLen bounds ids and filters taken from the URL.
const maxQueryParamLen = 128

// handleListEntities returns every entity snapshot, sorted by unique id.
// Supports an optional ?kind= filter.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if len(kind) > maxQueryParamLen {
		writeBadRequest(w, "kind exceeds maximum length")
		return
	}

	entities := make([]entity.Snapshot, 0)
	for _, snap := range s.bridge.Entities() {
		if kind != "" && string(snap.Kind) != kind {
			continue
		}
		entities = append(entities, snap)
	}

	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "count": len(entities)})
}

// handleGetEntity returns a single entity snapshot.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	uid, ok := entityID(w, r)
	if !ok {
		return
	}

	snap, err := s.bridge.Entity(uid)
	if err != nil {
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEntityAction runs a typed action (turn_on, set_percentage, lock, ...)
// against an entity and returns the resulting snapshot.
func (s *Server) handleEntityAction(w http.ResponseWriter, r *http.Request) {
	uid, ok := entityID(w, r)
	if !ok {
		return
	}

	var req entity.ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	action, err := req.ToAction()
	if err != nil {
		writeBridgeError(w, err)
		return
	}

	snap, err := s.bridge.Execute(r.Context(), uid, action)
	if err != nil {
		s.logger.Warn("entity action failed",
			"entity_id", uid,
			"action", req.Action,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleEntityCommand writes a raw function state to the entity's device.
func (s *Server) handleEntityCommand(w http.ResponseWriter, r *http.Request) {
	uid, ok := entityID(w, r)
	if !ok {
		return
	}

	var cmd bridge.CommandMessage
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if cmd.FunctionClass == "" {
		writeBadRequest(w, "function_class is required")
		return
	}

	snap, err := s.bridge.SendCommand(r.Context(), uid, cmd.FunctionClass, cmd.FunctionInstance, cmd.Value)
	if err != nil {
		s.logger.Warn("entity command failed",
			"entity_id", uid,
			"function_class", cmd.FunctionClass,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeBridgeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// entityID reads and validates the {id} URL parameter.
func entityID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := chi.URLParam(r, "id")
	if uid == "" || len(uid) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity ID")
		return "", false
	}
	return uid, true
}
