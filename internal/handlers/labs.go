package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"labmarket/internal/matching"
	"labmarket/models"
)

// GetRecommendedLabsHandler возвращает ранжированный список лабораторий
// для заказа: категория и срочность обязательны, mode=OpenMarket даёт
// открытый рынок без фильтра по специализации
func (h *Handler) GetRecommendedLabsHandler(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	urgency := r.URL.Query().Get("urgency")
	if category == "" || urgency == "" {
		http.Error(w, "Missing category or urgency", http.StatusBadRequest)
		return
	}
	if urgency != string(models.UrgencyNormal) && urgency != string(models.UrgencyUrgent) {
		http.Error(w, "Invalid urgency value", http.StatusBadRequest)
		return
	}

	mode := matching.ModeTrustRanked
	if r.URL.Query().Get("mode") == string(matching.ModeOpenMarket) {
		mode = matching.ModeOpenMarket
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			limit = l
		}
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	candidates, err := h.Matching.RankLabs(r.Context(), caller.UserID, category, models.Urgency(urgency), mode, limit)
	if err != nil {
		http.Error(w, "Failed to rank labs", http.StatusInternalServerError)
		return
	}

	// Пустой список — не ошибка: клиент предлагает открытый рынок
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(candidates)
}

// GetLabQuoteHandler возвращает срок и цену одной лаборатории
func (h *Handler) GetLabQuoteHandler(w http.ResponseWriter, r *http.Request) {
	labIDStr := chi.URLParam(r, "labId")
	labID, err := strconv.Atoi(labIDStr)
	if err != nil || labID <= 0 {
		http.Error(w, "Invalid labId", http.StatusBadRequest)
		return
	}

	category := r.URL.Query().Get("category")
	urgency := r.URL.Query().Get("urgency")
	if category == "" || urgency == "" {
		http.Error(w, "Missing category or urgency", http.StatusBadRequest)
		return
	}

	quote, err := h.Matching.Quote(r.Context(), labID, category, models.Urgency(urgency))
	if err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		matching.Quote
		PriceDisplay string `json:"priceDisplay"`
	}{quote, quote.PriceDisplay()})
}

// UpsertPreferredLabHandler добавляет лабораторию в предпочитаемые врача
// или обновляет её приоритет
func (h *Handler) UpsertPreferredLabHandler(w http.ResponseWriter, r *http.Request) {
	labIDStr := chi.URLParam(r, "labId")
	labID, err := strconv.Atoi(labIDStr)
	if err != nil || labID <= 0 {
		http.Error(w, "Invalid labId", http.StatusBadRequest)
		return
	}

	priority := 0
	if prioStr := r.URL.Query().Get("priority"); prioStr != "" {
		if p, err := strconv.Atoi(prioStr); err == nil && p >= 0 {
			priority = p
		}
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}
	if caller.Role != models.RoleDoctor {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if _, err := h.Store.GetLab(r.Context(), labID); err != nil {
		http.Error(w, "Lab not found", http.StatusNotFound)
		return
	}

	pref := &models.PreferredLab{DoctorID: caller.UserID, LabID: labID, Priority: priority}
	if err := h.Store.UpsertPreferredLab(r.Context(), pref); err != nil {
		http.Error(w, "Failed to save preferred lab", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pref)
}
