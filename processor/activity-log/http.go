package activitylog

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	headerUserID    = "X-User-Id"
	headerUserRoles = "X-User-Roles"
)

// RegisterHTTPHandlers registers HTTP handlers for the activity-log
// component. The prefix excludes the trailing slash.
func (c *Component) RegisterHTTPHandlers(prefix string, mux *http.ServeMux) {
	prefix = strings.TrimSuffix(prefix, "/")
	mux.HandleFunc("GET "+prefix+"/submissions/{id}/activity", c.handleListActivity)
}

// handleListActivity returns the activity feed for one submission,
// oldest first. The feed carries staff-facing operational detail, so
// it is limited to staff.
func (c *Component) handleListActivity(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	store := c.store
	c.mu.RUnlock()
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}

	userID := r.Header.Get(headerUserID)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "user identity required")
		return
	}
	if !hasStaffRole(r.Header.Get(headerUserRoles)) {
		writeError(w, http.StatusForbidden, "only staff may read the activity feed")
		return
	}

	activities, err := store.ListActivityBySubmission(r.Context(), r.PathValue("id"))
	if err != nil {
		c.logger.Error("Failed to list activity", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"activity": activities})
}

func hasStaffRole(roles string) bool {
	for _, raw := range strings.Split(roles, ",") {
		if strings.TrimSpace(raw) == "staff" {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
