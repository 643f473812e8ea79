package handlers

import (
	"errors"
	"net/http"

	"labmarket/internal/matching"
)

// Handler оборачивает хранилище и движок подбора
type Handler struct {
	Store    StorageInterface
	Matching MatchingInterface
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, m MatchingInterface) *Handler {
	return &Handler{Store: store, Matching: m}
}

// PingHandler отвечает "ok" для проверки сервера
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// resolveCaller разбирает username из query и возвращает вызывающего для
// движка. Проверка учетных данных — забота внешнего слоя, здесь только
// роль и привязка к лаборатории.
func (h *Handler) resolveCaller(r *http.Request) (matching.Caller, error) {
	username := r.URL.Query().Get("username")
	if username == "" {
		return matching.Caller{}, errors.New("missing username parameter")
	}
	user, err := h.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		return matching.Caller{}, err
	}
	caller := matching.Caller{UserID: user.ID, Role: user.Role}
	if user.LabID != nil {
		caller.LabID = *user.LabID
	}
	return caller, nil
}

// matchingErrStatus переводит ошибки движка в HTTP-статусы.
// Текст ошибки уходит клиенту: врач должен видеть конкретную причину
// ("заказ уже закреплён за другой лабораторией"), а не общий отказ.
func matchingErrStatus(err error) int {
	switch {
	case errors.Is(err, matching.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, matching.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, matching.ErrAlreadyBound),
		errors.Is(err, matching.ErrDuplicateClaim),
		errors.Is(err, matching.ErrOrderNotOpen),
		errors.Is(err, matching.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, matching.ErrIneligibleLab):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
