package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"labmarket/models"
)

// SubmitClaim подаёт заявку лаборатории на открытый заказ.
// Заявку подаёт сотрудник лаборатории от имени своей лаборатории.
func (s *Service) SubmitClaim(ctx context.Context, caller Caller, orderID int, price *float64, comment string) (*models.Claim, error) {
	if caller.Role != models.RoleLabStaff || caller.LabID == 0 {
		return nil, fmt.Errorf("%w: only lab staff submit claims", ErrForbidden)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OpenForBids || order.AssignedLabID != nil {
		return nil, ErrOrderNotOpen
	}

	lab, err := s.store.GetLab(ctx, caller.LabID)
	if err != nil {
		return nil, err
	}
	if !lab.Active {
		return nil, fmt.Errorf("%w: lab %d is inactive", ErrIneligibleLab, lab.ID)
	}
	spec, err := s.store.GetSpecialization(ctx, lab.ID, order.Category)
	if err != nil {
		return nil, fmt.Errorf("load specialization: %w", err)
	}
	if spec == nil {
		return nil, fmt.Errorf("%w: lab %d has no specialization for %s", ErrIneligibleLab, lab.ID, order.Category)
	}
	if lab.CurrentLoad >= lab.MaxCapacity {
		return nil, ErrCapacityExceeded
	}

	claim := &models.Claim{
		OrderID: order.ID,
		LabID:   lab.ID,
		UserID:  caller.UserID,
		Status:  models.ClaimPending,
		Price:   price,
		Comment: comment,
	}
	if err := s.store.CreateClaim(ctx, claim); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, newEvent(EventClaimSubmitted, order.ID, lab.ID, claim.ID, claim.Status))
	return claim, nil
}

// AcceptClaim принимает заявку и закрепляет заказ за её лабораторией.
// Переход Open -> Bound — единственная атомарная условная операция;
// проигравшая гонку сторона получает ErrAlreadyBound и должна перечитать
// заказ, а не повторять вслепую.
func (s *Service) AcceptClaim(ctx context.Context, caller Caller, claimID int) (*models.Claim, error) {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, claim.OrderID)
	if err != nil {
		return nil, err
	}
	if caller.Role != models.RoleAdmin && (caller.Role != models.RoleDoctor || caller.UserID != order.DoctorID) {
		return nil, fmt.Errorf("%w: only the order's doctor or an administrator accept claims", ErrForbidden)
	}
	if order.Bound() {
		return nil, ErrAlreadyBound
	}
	if claim.Status != models.ClaimPending {
		return nil, ErrOrderNotOpen
	}

	if err := s.store.BindOrderToClaim(ctx, order.ID, claim.ID, claim.LabID); err != nil {
		return nil, err
	}
	claim.Status = models.ClaimAccepted

	s.notifier.Notify(ctx, newEvent(EventOrderBound, order.ID, claim.LabID, claim.ID, claim.Status))
	s.notifier.Notify(ctx, newEvent(EventClaimAccepted, order.ID, claim.LabID, claim.ID, claim.Status))
	s.refuseSiblings(ctx, order.ID, claim.ID)

	return claim, nil
}

// WithdrawClaim отзывает Pending-заявку своей лаборатории.
// Чистое удаление, на остальные заявки и заказ не влияет.
func (s *Service) WithdrawClaim(ctx context.Context, caller Caller, claimID int) error {
	claim, err := s.store.GetClaim(ctx, claimID)
	if err != nil {
		return err
	}
	if caller.Role != models.RoleAdmin && (caller.Role != models.RoleLabStaff || caller.LabID != claim.LabID) {
		return fmt.Errorf("%w: claim belongs to another lab", ErrForbidden)
	}
	if claim.Status != models.ClaimPending {
		return ErrOrderNotOpen
	}
	order, err := s.store.GetOrder(ctx, claim.OrderID)
	if err != nil {
		return err
	}
	if order.Bound() {
		return ErrOrderNotOpen
	}
	return s.store.DeleteClaim(ctx, claimID)
}

// AdminOverride закрепляет заказ за произвольной активной лабораторией в
// обход заявок, специализации и мощности — операционный ручной путь.
// Предусловие атомарного закрепления то же, что у AcceptClaim, а в
// истории остаётся синтетическая Accepted-заявка.
func (s *Service) AdminOverride(ctx context.Context, caller Caller, orderID, labID int) (*models.Order, error) {
	if caller.Role != models.RoleAdmin {
		return nil, fmt.Errorf("%w: override requires administrator", ErrForbidden)
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Bound() {
		return nil, ErrAlreadyBound
	}
	lab, err := s.store.GetLab(ctx, labID)
	if err != nil {
		return nil, err
	}
	if !lab.Active {
		return nil, fmt.Errorf("%w: lab %d is inactive", ErrIneligibleLab, lab.ID)
	}

	claimID, err := s.store.BindOrderDirect(ctx, order.ID, lab.ID, caller.UserID)
	if err != nil {
		return nil, err
	}
	order.OpenForBids = false
	order.AssignedLabID = &lab.ID

	s.notifier.Notify(ctx, newEvent(EventOrderBound, order.ID, lab.ID, claimID, models.ClaimAccepted))
	s.refuseSiblings(ctx, order.ID, claimID)

	return order, nil
}

// refuseSiblings переводит оставшиеся Pending-заявки заказа в Refused.
// Закрепление уже зафиксировано, поля заказа авторитетны, поэтому сбой
// здесь не откатывает bind: шаг повторяется с backoff, а не доведённая
// до Refused заявка остаётся для читателей заведомо устаревшей.
func (s *Service) refuseSiblings(ctx context.Context, orderID, winnerClaimID int) {
	backoff := retry.WithMaxRetries(5, retry.NewExponential(50*time.Millisecond))
	var refused []models.Claim
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var rerr error
		refused, rerr = s.store.RefusePendingClaims(ctx, orderID, winnerClaimID)
		if rerr != nil {
			return retry.RetryableError(rerr)
		}
		return nil
	})
	if err != nil {
		// Последняя попытка тоже не прошла; заявки доберёт следующий
		// bind-поток или ручная операция, состояние заказа уже верное
		return
	}
	for _, c := range refused {
		s.notifier.Notify(ctx, newEvent(EventClaimRefused, orderID, c.LabID, c.ID, models.ClaimRefused))
	}
}
