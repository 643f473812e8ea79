package matching

import "errors"

// Ошибки движка — детерминированные исходы для вызывающей стороны,
// движок их сам не ретраит.
var (
	// Лаборатория неактивна, без нужной специализации или без мощности
	ErrIneligibleLab = errors.New("lab is not eligible for this order")
	// Повторная заявка той же лаборатории на тот же заказ
	ErrDuplicateClaim = errors.New("claim already exists for this order and lab")
	// Заказ уже не принимает заявки
	ErrOrderNotOpen = errors.New("order is not open for claims")
	// Проигрыш гонки за атомарное закрепление
	ErrAlreadyBound = errors.New("order is already bound to another lab")
	// Мощность лаборатории исчерпана между ранжированием и заявкой
	ErrCapacityExceeded = errors.New("lab has reached its max capacity")
	// Заказ, лаборатория или заявка не существуют
	ErrNotFound = errors.New("not found")
	// Операция не разрешена роли вызывающего
	ErrForbidden = errors.New("operation is not allowed for this caller")
)
