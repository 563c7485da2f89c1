package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// handleEntityHistory returns recorded state snapshots for an entity,
// newest first.
func (s *Server) handleEntityHistory(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "id")
	if uid == "" || len(uid) > maxQueryParamLen {
		writeBadRequest(w, "invalid entity ID")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if _, err := s.bridge.Entity(uid); err != nil {
		writeBridgeError(w, err)
		return
	}

	entries, err := s.bridge.History(r.Context(), uid, limit)
	if err != nil {
		s.logger.Error("loading entity history", "entity_id", uid, "error", err)
		writeInternalError(w, "failed to load entity history")
		return
	}

	if !since.IsZero() {
		filtered := entries[:0]
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": uid,
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit parameter with default and upper bound.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing since: %w", err)
	}
	return t.UTC(), nil
}
