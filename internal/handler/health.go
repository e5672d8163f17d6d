package handler

import "net/http"

// HealthCheck godoc
// @Summary Liveness probe
// @Tags infra
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *GenerateHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
