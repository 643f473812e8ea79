package matching

import (
	"context"

	"labmarket/models"
)

// Storage — контракт движка к хранилищу. Реализуется пакетом db,
// в тестах подменяется in-memory хранилищем.
//
// Методы Get* возвращают ErrNotFound, если записи нет.
// GetSpecialization и GetLabPrice возвращают (nil, nil), если строки нет:
// для калькулятора цены это штатное состояние, не ошибка.
type Storage interface {
	GetOrder(ctx context.Context, orderID int) (*models.Order, error)
	CreateOrder(ctx context.Context, o *models.Order) error

	GetLab(ctx context.Context, labID int) (*models.Lab, error)
	// Активные лаборатории со специализацией по категории и свободной мощностью
	EligibleLabs(ctx context.Context, category string) ([]models.Lab, error)
	// Все активные лаборатории, без фильтра по специализации
	ActiveLabs(ctx context.Context) ([]models.Lab, error)
	GetSpecialization(ctx context.Context, labID int, category string) (*models.Specialization, error)
	GetLabPrice(ctx context.Context, labID int, category string) (*models.LabPrice, error)
	GetPreferredLabs(ctx context.Context, doctorID int) ([]models.PreferredLab, error)

	// CreateClaim возвращает ErrDuplicateClaim при повторе пары
	// (order, lab). Открытость заказа — предусловие самой вставки:
	// если заказ уже закреплён, возвращается ErrOrderNotOpen, даже
	// когда проверка перед вставкой видела заказ открытым.
	CreateClaim(ctx context.Context, c *models.Claim) error
	GetClaim(ctx context.Context, claimID int) (*models.Claim, error)
	DeleteClaim(ctx context.Context, claimID int) error
	ClaimsForOrder(ctx context.Context, orderID int) ([]models.Claim, error)

	// BindOrderToClaim атомарно закрепляет заказ за лабораторией выигравшей
	// заявки: заказ переводится из Open при условии
	// open_for_bids AND assigned_lab_id IS NULL (иначе ErrAlreadyBound),
	// заявка Pending -> Accepted, загрузка лаборатории +1 в той же
	// транзакции (ErrCapacityExceeded, если мощность исчерпана).
	BindOrderToClaim(ctx context.Context, orderID, claimID, labID int) error

	// BindOrderDirect — то же закрепление, но минуя заявки: создаёт
	// синтетическую Accepted-заявку (или переводит существующую заявку
	// этой лаборатории в Accepted) и не проверяет мощность. Путь
	// админского override и прямых заказов. Возвращает id заявки.
	BindOrderDirect(ctx context.Context, orderID, labID, userID int) (int, error)

	// RefusePendingClaims переводит оставшиеся Pending-заявки заказа в
	// Refused и возвращает затронутые заявки (для уведомлений).
	RefusePendingClaims(ctx context.Context, orderID, winnerClaimID int) ([]models.Claim, error)
}
