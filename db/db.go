package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"labmarket/internal/matching"
	"labmarket/models"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// translateErr приводит ошибки драйвера к ошибкам движка
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return matching.ErrNotFound
	}
	var pqErr *pq.Error
	// 23505 unique_violation: повтор пары (order, lab)
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return matching.ErrDuplicateClaim
	}
	return err
}

// Users (Пользователи)

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT * FROM users WHERE username=$1`
	err := s.db.GetContext(ctx, u, query, username)
	return u, translateErr(err)
}

// Labs (Лаборатории)

func (s *Storage) GetLab(ctx context.Context, labID int) (*models.Lab, error) {
	l := &models.Lab{}
	query := `SELECT * FROM labs WHERE id=$1`
	err := s.db.GetContext(ctx, l, query, labID)
	return l, translateErr(err)
}

func (s *Storage) EligibleLabs(ctx context.Context, category string) ([]models.Lab, error) {
	query := `
        SELECT l.*
        FROM labs l
        JOIN lab_specializations sp ON sp.lab_id = l.id AND sp.category = $1
        WHERE l.active AND l.current_load < l.max_capacity
        ORDER BY l.id`
	labs := []models.Lab{}
	err := s.db.SelectContext(ctx, &labs, query, category)
	return labs, err
}

func (s *Storage) ActiveLabs(ctx context.Context) ([]models.Lab, error) {
	query := `SELECT * FROM labs WHERE active ORDER BY id`
	labs := []models.Lab{}
	err := s.db.SelectContext(ctx, &labs, query)
	return labs, err
}

func (s *Storage) GetSpecialization(ctx context.Context, labID int, category string) (*models.Specialization, error) {
	sp := &models.Specialization{}
	query := `SELECT * FROM lab_specializations WHERE lab_id=$1 AND category=$2`
	err := s.db.GetContext(ctx, sp, query, labID, category)
	if errors.Is(err, sql.ErrNoRows) {
		// Отсутствие специализации — штатное состояние для калькулятора
		return nil, nil
	}
	return sp, err
}

func (s *Storage) GetLabPrice(ctx context.Context, labID int, category string) (*models.LabPrice, error) {
	p := &models.LabPrice{}
	query := `SELECT * FROM lab_prices WHERE lab_id=$1 AND category=$2`
	err := s.db.GetContext(ctx, p, query, labID, category)
	if errors.Is(err, sql.ErrNoRows) {
		// Нет прайса — будет "цена по запросу"
		return nil, nil
	}
	return p, err
}

// PreferredLabs (Предпочитаемые лаборатории врача)

func (s *Storage) GetPreferredLabs(ctx context.Context, doctorID int) ([]models.PreferredLab, error) {
	query := `SELECT * FROM preferred_labs WHERE doctor_id=$1 ORDER BY priority ASC`
	prefs := []models.PreferredLab{}
	err := s.db.SelectContext(ctx, &prefs, query, doctorID)
	return prefs, err
}

func (s *Storage) UpsertPreferredLab(ctx context.Context, p *models.PreferredLab) error {
	query := `
        INSERT INTO preferred_labs (doctor_id, lab_id, priority)
        VALUES ($1, $2, $3)
        ON CONFLICT (doctor_id, lab_id) DO UPDATE SET priority = EXCLUDED.priority
    `
	_, err := s.db.ExecContext(ctx, query, p.DoctorID, p.LabID, p.Priority)
	return err
}

// Orders (Заказы)

func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) error {
	query := `
        INSERT INTO orders
            (doctor_id, category, urgency, budget, comment, open_for_bids, status)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		o.DoctorID, o.Category, o.Urgency, o.Budget, o.Comment, o.OpenForBids, o.Status).
		Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
}

func (s *Storage) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	o := &models.Order{}
	query := `SELECT * FROM orders WHERE id=$1`
	err := s.db.GetContext(ctx, o, query, orderID)
	return o, translateErr(err)
}

func (s *Storage) GetDoctorOrders(ctx context.Context, doctorID int, limit, offset int) ([]models.Order, error) {
	query := `
        SELECT * FROM orders
        WHERE doctor_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, doctorID, limit, offset)
	return orders, err
}

func (s *Storage) GetOpenOrders(ctx context.Context, category string, limit, offset int) ([]models.Order, error) {
	baseQuery := `SELECT * FROM orders WHERE open_for_bids AND assigned_lab_id IS NULL`
	args := []interface{}{}
	if category != "" {
		baseQuery += ` AND category = $1`
		args = append(args, category)
	}
	query := fmt.Sprintf("%s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, limit, offset)
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// SetOrderStatus переводит заказ по производственному циклу.
// При Delivered в той же транзакции снимается единица загрузки с
// закреплённой лаборатории.
func (s *Storage) SetOrderStatus(ctx context.Context, orderID int, status models.OrderStatus) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var labID *int
	query := `
        UPDATE orders SET status=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING assigned_lab_id`
	if err := tx.QueryRowContext(ctx, query, status, orderID).Scan(&labID); err != nil {
		return translateErr(err)
	}

	if status == models.OrderDelivered && labID != nil {
		_, err = tx.ExecContext(ctx,
			`UPDATE labs SET current_load = GREATEST(current_load - 1, 0), updated_at=NOW() WHERE id=$1`,
			*labID)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Claims (Заявки)

// CreateClaim создаёт Pending-заявку. Открытость заказа — предусловие
// самой вставки, как WHERE у BindOrderToClaim: заявка, проигравшая
// гонку с закреплением, получает ErrOrderNotOpen, а не повисает в
// Pending после того, как конкуренты уже отклонены.
func (s *Storage) CreateClaim(ctx context.Context, c *models.Claim) error {
	query := `
        INSERT INTO claims (order_id, lab_id, user_id, status, price, comment)
        SELECT $1, $2, $3, $4, $5, $6
        WHERE EXISTS (
            SELECT 1 FROM orders
            WHERE id = $1 AND open_for_bids AND assigned_lab_id IS NULL)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		c.OrderID, c.LabID, c.UserID, c.Status, c.Price, c.Comment).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return matching.ErrOrderNotOpen
	}
	return translateErr(err)
}

func (s *Storage) GetClaim(ctx context.Context, claimID int) (*models.Claim, error) {
	c := &models.Claim{}
	query := `SELECT * FROM claims WHERE id=$1`
	err := s.db.GetContext(ctx, c, query, claimID)
	return c, translateErr(err)
}

func (s *Storage) DeleteClaim(ctx context.Context, claimID int) error {
	query := `DELETE FROM claims WHERE id=$1 AND status='Pending'`
	res, err := s.db.ExecContext(ctx, query, claimID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}
	return nil
}

func (s *Storage) ClaimsForOrder(ctx context.Context, orderID int) ([]models.Claim, error) {
	query := `SELECT * FROM claims WHERE order_id=$1 ORDER BY created_at ASC`
	claims := []models.Claim{}
	err := s.db.SelectContext(ctx, &claims, query, orderID)
	return claims, err
}

func (s *Storage) ClaimsForLab(ctx context.Context, labID int, limit, offset int) ([]models.Claim, error) {
	query := `
        SELECT * FROM claims
        WHERE lab_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	claims := []models.Claim{}
	err := s.db.SelectContext(ctx, &claims, query, labID, limit, offset)
	return claims, err
}

// BindOrderToClaim — атомарное закрепление заказа за лабораторией
// выигравшей заявки. Предусловие в WHERE и есть защита от двойного
// закрепления: проигравший конкурент получает 0 строк и ErrAlreadyBound.
func (s *Storage) BindOrderToClaim(ctx context.Context, orderID, claimID, labID int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE orders
        SET assigned_lab_id=$1, open_for_bids=FALSE, updated_at=NOW()
        WHERE id=$2 AND open_for_bids AND assigned_lab_id IS NULL`,
		labID, orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrAlreadyBound
	}

	res, err = tx.ExecContext(ctx, `
        UPDATE claims SET status='Accepted', updated_at=NOW()
        WHERE id=$1 AND status='Pending'`,
		claimID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrNotFound
	}

	// Загрузка меняется только вместе с закреплением, иначе рекомендации
	// читают устаревшую мощность
	res, err = tx.ExecContext(ctx, `
        UPDATE labs SET current_load = current_load + 1, updated_at=NOW()
        WHERE id=$1 AND current_load < max_capacity`,
		labID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return matching.ErrCapacityExceeded
	}

	return tx.Commit()
}

// BindOrderDirect — закрепление в обход заявок (прямой заказ или
// админский override): то же предусловие, синтетическая Accepted-заявка
// для единообразной истории, без проверки мощности.
func (s *Storage) BindOrderDirect(ctx context.Context, orderID, labID, userID int) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE orders
        SET assigned_lab_id=$1, open_for_bids=FALSE, updated_at=NOW()
        WHERE id=$2 AND open_for_bids AND assigned_lab_id IS NULL`,
		labID, orderID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, matching.ErrAlreadyBound
	}

	// Если у лаборатории уже была заявка на этот заказ — принимаем её,
	// иначе создаём синтетическую
	var claimID int
	err = tx.QueryRowContext(ctx, `
        INSERT INTO claims (order_id, lab_id, user_id, status)
        VALUES ($1, $2, $3, 'Accepted')
        ON CONFLICT (order_id, lab_id)
        DO UPDATE SET status='Accepted', updated_at=NOW()
        RETURNING id`,
		orderID, labID, userID).Scan(&claimID)
	if err != nil {
		return 0, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE labs SET current_load = current_load + 1, updated_at=NOW() WHERE id=$1`,
		labID)
	if err != nil {
		return 0, err
	}

	return claimID, tx.Commit()
}

func (s *Storage) RefusePendingClaims(ctx context.Context, orderID, winnerClaimID int) ([]models.Claim, error) {
	query := `
        UPDATE claims SET status='Refused', updated_at=NOW()
        WHERE order_id=$1 AND status='Pending' AND id<>$2
        RETURNING *`
	refused := []models.Claim{}
	err := s.db.SelectContext(ctx, &refused, query, orderID, winnerClaimID)
	return refused, err
}
