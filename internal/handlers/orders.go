package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"labmarket/internal/matching"
	"labmarket/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

type orderRequest struct {
	Category string   `json:"category"`
	Urgency  string   `json:"urgency"`
	Budget   *float64 `json:"budget"`
	Comment  string   `json:"comment"`
	// Если labId задан — заказ адресуется лаборатории напрямую,
	// иначе публикуется на маркетплейсе
	LabID int `json:"labId"`
}

// validateOrderRequest проверяет необходимые поля по спецификации
func validateOrderRequest(req *orderRequest) error {
	validCategory := false
	for _, c := range models.RestorationCategories {
		if req.Category == c {
			validCategory = true
			break
		}
	}
	if !validCategory {
		return errors.New("invalid category")
	}
	if req.Urgency != string(models.UrgencyNormal) && req.Urgency != string(models.UrgencyUrgent) {
		return errors.New("urgency must be 'Normal' or 'Urgent'")
	}
	if req.Budget != nil && *req.Budget < 0 {
		return errors.New("budget must not be negative")
	}
	if len(req.Comment) > 500 {
		return errors.New("comment max length 500")
	}
	if req.LabID < 0 {
		return errors.New("labId must be positive")
	}
	return nil
}

// CreateOrderHandler обрабатывает POST /api/orders/new запрос
func (h *Handler) CreateOrderHandler(w http.ResponseWriter, r *http.Request) {
	// Ограничение размера тела, чтобы избежать DoS
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req orderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}

	if err := validateOrderRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	order, err := h.Matching.CreateOrder(r.Context(), caller, matching.OrderParams{
		Category: req.Category,
		Urgency:  models.Urgency(req.Urgency),
		Budget:   req.Budget,
		Comment:  req.Comment,
		LabID:    req.LabID,
	})
	if err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(order)
}

// GetOrderHandler возвращает заказ по id
func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderId")
	orderID, err := strconv.Atoi(orderIDStr)
	if err != nil || orderID <= 0 {
		http.Error(w, "Invalid orderId", http.StatusBadRequest)
		return
	}

	order, err := h.Store.GetOrder(r.Context(), orderID)
	if err != nil {
		http.Error(w, "Order not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// GetDoctorOrdersHandler возвращает заказы врача username
func (h *Handler) GetDoctorOrdersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	orders, err := h.Store.GetDoctorOrders(r.Context(), caller.UserID, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// GetOpenOrdersHandler возвращает открытые заказы маркетплейса с
// фильтром по категории
func (h *Handler) GetOpenOrdersHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	category := r.URL.Query().Get("category")
	if category != "" {
		valid := false
		for _, c := range models.RestorationCategories {
			if category == c {
				valid = true
				break
			}
		}
		if !valid {
			http.Error(w, "Invalid category", http.StatusBadRequest)
			return
		}
	}

	orders, err := h.Store.GetOpenOrders(r.Context(), category, params.Limit, params.Offset)
	if err != nil {
		http.Error(w, "Failed to get open orders", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

// ChangeOrderStatusHandler двигает заказ по производственному циклу:
// Pending -> InProgress -> ReadyForQC -> ReadyForDelivery -> Delivered
func (h *Handler) ChangeOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderId")
	newStatus := r.URL.Query().Get("status")

	if orderIDStr == "" || newStatus == "" {
		http.Error(w, "Missing required parameters", http.StatusBadRequest)
		return
	}

	orderID, err := strconv.Atoi(orderIDStr)
	if err != nil {
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

	// Статус двигает закреплённая лаборатория или администратор
	if caller.Role != models.RoleAdmin {
		if caller.Role != models.RoleLabStaff || order.AssignedLabID == nil || caller.LabID != *order.AssignedLabID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	// Проверка возможности перехода статуса
	next := map[models.OrderStatus]models.OrderStatus{
		models.OrderPending:          models.OrderInProgress,
		models.OrderInProgress:       models.OrderReadyForQC,
		models.OrderReadyForQC:       models.OrderReadyForDelivery,
		models.OrderReadyForDelivery: models.OrderDelivered,
	}
	expected, ok := next[order.Status]
	if !ok {
		http.Error(w, "Order is already delivered", http.StatusBadRequest)
		return
	}
	if models.OrderStatus(newStatus) != expected {
		http.Error(w, "Invalid status transition", http.StatusBadRequest)
		return
	}

	if err := h.Store.SetOrderStatus(r.Context(), orderID, models.OrderStatus(newStatus)); err != nil {
		http.Error(w, "Failed to update order status", http.StatusInternalServerError)
		return
	}
	order.Status = models.OrderStatus(newStatus)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

// AdminOverrideHandler закрепляет заказ за лабораторией вручную, в обход
// заявок — операционный путь для исключительных ситуаций
func (h *Handler) AdminOverrideHandler(w http.ResponseWriter, r *http.Request) {
	orderIDStr := chi.URLParam(r, "orderId")
	labIDStr := r.URL.Query().Get("labId")

	orderID, err1 := strconv.Atoi(orderIDStr)
	labID, err2 := strconv.Atoi(labIDStr)
	if err1 != nil || err2 != nil || orderID <= 0 || labID <= 0 {
		http.Error(w, "Invalid orderId or labId", http.StatusBadRequest)
		return
	}

	caller, err := h.resolveCaller(r)
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	order, err := h.Matching.AdminOverride(r.Context(), caller, orderID, labID)
	if err != nil {
		http.Error(w, err.Error(), matchingErrStatus(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}
