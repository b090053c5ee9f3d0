package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"stars-shop/internal/logger"
	"stars-shop/internal/shop"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serviceErrorStatus maps shop errors to a status code and client message.
// Anything unrecognised is a 500 with the fallback message.
func serviceErrorStatus(err error, fallback string) (int, string) {
	switch {
	case errors.Is(err, shop.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, shop.ErrPaymentNotFound):
		return http.StatusNotFound, "Payment not found"
	case errors.Is(err, shop.ErrOutOfStock):
		return http.StatusBadRequest, "Product is out of stock"
	case errors.Is(err, shop.ErrNotRefundable):
		return http.StatusBadRequest, "Only paid payments can be refunded"
	case errors.Is(err, shop.ErrMissingChargeID):
		return http.StatusBadRequest, "Payment charge ID not found. Cannot process refund."
	case errors.Is(err, shop.ErrNotPending):
		return http.StatusBadRequest, "Payment is not pending"
	case errors.Is(err, shop.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, fallback
}

// writeServiceError logs every service error: client errors at warn, the rest
// at error. Internal details never reach the response.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, msg := serviceErrorStatus(err, fallback)
	log := logger.FromCtx(r.Context(), s.log).With(
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	)
	if status >= http.StatusInternalServerError {
		log.Error(fallback)
	} else {
		log.Warn("request rejected")
	}
	writeError(w, status, msg)
}
