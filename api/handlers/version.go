package handlers

import "net/http"

// GetVersion returns the build version of the server.
func (h *Handler) GetVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.version)
}
