package handler

import (
	"net/http"
	"strconv"

	"github.com/bhardwajharsh207/imageforge/backend/internal/models"
)

// History godoc
// @Summary List the caller's generation history
// @Description Returns the authenticated user's generation records, newest first.
// @Tags history
// @Produce json
// @Param limit query int false "Maximum number of records" default(20)
// @Success 200 {object} models.HistoryResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /history [get]
func (h *GenerateHandler) History(w http.ResponseWriter, r *http.Request) {
	ownerID := r.Header.Get(userIDHeader)
	if ownerID == "" {
		writeError(w, http.StatusUnauthorized, "sign in to view history")
		return
	}
	if h.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.history.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		h.logger.Printf("history query failed for %s: %v", ownerID, err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if items == nil {
		items = []*models.HistoryRecord{}
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{Items: items})
}
