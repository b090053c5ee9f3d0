package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stars-shop/internal/models"
	"stars-shop/internal/shop"
)

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shop.Catalog().List(r.URL.Query().Get("category")))
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := s.shop.Catalog().Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.shop.Catalog().Categories())
}

func (s *Server) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req shop.CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	inv, err := s.shop.CreateInvoice(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to create invoice")
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) paymentStatus(w http.ResponseWriter, r *http.Request) {
	p, err := s.shop.Status(r.Context(), chi.URLParam(r, "paymentId"))
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to get payment status")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) paymentHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil || userID == 0 {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	list, err := s.shop.History(r.Context(), userID)
	if err != nil {
		s.writeServiceError(w, r, err, "Failed to get payment history")
		return
	}
	if list == nil {
		list = []models.Payment{}
	}
	writeJSON(w, http.StatusOK, list)
}

type refundRequest struct {
	PaymentID string `json:"paymentId"`
}

func (s *Server) refund(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if _, err := s.shop.Refund(r.Context(), req.PaymentID); err != nil {
		s.writeServiceError(w, r, err, "Failed to process refund with Telegram")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Refund processed successfully",
	})
}
