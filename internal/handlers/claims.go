package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"labmarket/models"
)

type claimRequest struct {
	OrderID int      `json:"orderId"`
	Price   *float64 `json:"price"`
	Comment string   `json:"comment"`
}

func validateClaimRequest(req *claimRequest) error {
	if req.OrderID <= 0 {
		return errors.New("orderId must be positive")
	}
	if req.Price != nil && *req.Price < 0 {
		return errors.New("price must not be negative")
	}
	if len(req.Comment) > 500 {
		return errors.New("comment max length 500")
	}
	return nil
}

// SubmitClaimHandler обрабатывает POST /api/claims/new запрос
func (h *Handler) SubmitClaimHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req claimRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := validateClaimRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	claim, err := h.Matching.SubmitClaim(r.Context(), caller, req.OrderID, req.Price, req.Comment)
	if err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(claim)
}

// GetOrderClaimsHandler возвращает заявки на заказ — врачу-владельцу или
// администратору
func (h *Handler) GetOrderClaimsHandler(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderId")
	orderID, err := strconv.Atoi(orderIDStr)
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid orderId", http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	order, err := h.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	if caller.Role != models.RoleAdmin && caller.UserID != order.DoctorID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	claims, err := h.Store.ClaimsForOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, "Failed to get claims", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claims)
}

// GetLabClaimsHandler возвращает заявки лаборатории вызывающего
func (h *Handler) GetLabClaimsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}
	if caller.Role != models.RoleLabStaff || caller.LabID == 0 {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	claims, err := h.Store.ClaimsForLab(r.Context(), caller.LabID, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get claims", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claims)
}

// AcceptClaimHandler принимает заявку: заказ атомарно закрепляется за её
// лабораторией, остальные заявки получают отказ
func (h *Handler) AcceptClaimHandler(w http.ResponseWriter, r *http.Request) {
	claimIDStr := chi.URLParam(r, "claimId")
	claimID, err := strconv.Atoi(claimIDStr)
	if err != nil || claimID <= 0 {
		http.Error(w, "Invalid claimId", http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	claim, err := h.Matching.AcceptClaim(r.Context(), caller, claimID)
	if err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(claim)
}

// WithdrawClaimHandler отзывает Pending-заявку своей лаборатории
func (h *Handler) WithdrawClaimHandler(w http.ResponseWriter, r *http.Request) {
	claimIDStr := chi.URLParam(r, "claimId")
	claimID, err := strconv.Atoi(claimIDStr)
	if err != nil || claimID <= 0 {
		http.Error(w, "Invalid claimId", http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	if err := h.Matching.WithdrawClaim(r.Context(), caller, claimID); err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
