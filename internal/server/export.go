package server

import (
	"net/http"
	"strconv"

	"stars-shop/internal/util"
)

// exportHistory serves a user's history as CSV; the link is signed with
// EXPORT_SECRET over "export:<userId>".
func (s *Server) exportHistory(w http.ResponseWriter, r *http.Request) {
	rawID := r.URL.Query().Get("user_id")
	token := r.URL.Query().Get("token")
	if rawID == "" || token == "" {
		http.Error(w, "user_id and token required", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	if !util.ValidHMAC(s.cfg.ExportSecret, "export:"+rawID, token) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	csv, err := s.bot.BuildHistoryCSV(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to build export")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="payments_`+rawID+`.csv"`)
	_, _ = w.Write([]byte(csv))
}
