package matching

import (
	"context"
	"fmt"
	"time"

	"labmarket/models"
)

// Caller — уже проверенный снаружи вызывающий. Движок доверяет роли и
// привязке к лаборатории, аутентификацией не занимается.
type Caller struct {
	UserID int
	Role   models.Role
	LabID  int // только для lab_staff
}

// Candidate — элемент списка рекомендаций: лаборатория с рейтингом и
// готовым расчётом срока и цены, чтобы вызывающему не нужен был второй
// круг запросов.
type Candidate struct {
	Lab       models.Lab `json:"lab"`
	Score     float64    `json:"score"`
	Preferred bool       `json:"preferred"`
	Quote     Quote      `json:"quote"`
}

// Service — входная точка движка подбора и закрепления
type Service struct {
	store    Storage
	notifier Notifier
	now      func() time.Time
}

func NewService(store Storage, notifier Notifier) *Service {
	return &Service{store: store, notifier: notifier, now: time.Now}
}

// RankLabs возвращает до limit лабораторий для заказа данной категории и
// срочности. Пустой подходящий набор — это пустой список, не ошибка:
// вызывающий предлагает открытый рынок (ModeOpenMarket) как fallback.
func (s *Service) RankLabs(ctx context.Context, doctorID int, category string, urgency models.Urgency, mode Mode, limit int) ([]Candidate, error) {
	var (
		labs []models.Lab
		err  error
	)
	switch mode {
	case ModeOpenMarket:
		labs, err = s.store.ActiveLabs(ctx)
	default:
		mode = ModeTrustRanked
		labs, err = s.store.EligibleLabs(ctx, category)
	}
	if err != nil {
		return nil, fmt.Errorf("load labs: %w", err)
	}

	var preferred []models.PreferredLab
	if mode == ModeTrustRanked {
		preferred, err = s.store.GetPreferredLabs(ctx, doctorID)
		if err != nil {
			return nil, fmt.Errorf("load preferred labs: %w", err)
		}
	}

	ranked := rankLabs(labs, preferred, mode, limit)
	candidates := make([]Candidate, 0, len(ranked))
	for _, r := range ranked {
		quote, err := s.Quote(ctx, r.Lab.ID, category, urgency)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, Candidate{
			Lab:       r.Lab,
			Score:     r.Score,
			Preferred: r.Preferred,
			Quote:     quote,
		})
	}
	return candidates, nil
}

// Quote считает срок и цену для одной лаборатории
func (s *Service) Quote(ctx context.Context, labID int, category string, urgency models.Urgency) (Quote, error) {
	lab, err := s.store.GetLab(ctx, labID)
	if err != nil {
		return Quote{}, err
	}
	spec, err := s.store.GetSpecialization(ctx, labID, category)
	if err != nil {
		return Quote{}, fmt.Errorf("load specialization: %w", err)
	}
	price, err := s.store.GetLabPrice(ctx, labID, category)
	if err != nil {
		return Quote{}, fmt.Errorf("load price: %w", err)
	}
	return buildQuote(s.now(), lab, spec, price, urgency), nil
}

// OrderParams — параметры нового заказа
type OrderParams struct {
	Category string
	Urgency  models.Urgency
	Budget   *float64
	Comment  string
	// Если LabID задан — заказ адресуется лаборатории напрямую и
	// закрепляется при создании; иначе уходит на маркетплейс
	LabID int
}

// CreateOrder создаёт заказ от имени врача. Прямой заказ проходит тот же
// атомарный путь закрепления, что и маркетплейсный, поэтому история
// единообразна: у закреплённого заказа всегда есть Accepted-заявка.
func (s *Service) CreateOrder(ctx context.Context, caller Caller, p OrderParams) (*models.Order, error) {
	if caller.Role != models.RoleDoctor && caller.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: only doctors create orders", ErrForbidden)
	}

	// Целевая лаборатория прямого заказа проверяется до записи заказа:
	// иначе отказ оставил бы заказ опубликованным на маркетплейсе
	var lab *models.Lab
	if p.LabID != 0 {
		var err error
		lab, err = s.store.GetLab(ctx, p.LabID)
		if err != nil {
			return nil, err
		}
		if !lab.Active {
			return nil, ErrIneligibleLab
		}
	}

	order := &models.Order{
		DoctorID:    caller.UserID,
		Category:    p.Category,
		Urgency:     p.Urgency,
		Budget:      p.Budget,
		Comment:     p.Comment,
		OpenForBids: true,
		Status:      models.OrderPending,
	}
	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if lab == nil {
		return order, nil
	}

	claimID, err := s.store.BindOrderDirect(ctx, order.ID, lab.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	order.OpenForBids = false
	order.AssignedLabID = &lab.ID

	s.notifier.Notify(ctx, newEvent(EventOrderBound, order.ID, lab.ID, claimID, models.ClaimAccepted))
	return order, nil
}
