package matching

import (
	"context"
	"errors"
	"sync"

	"labmarket/models"
)

// memStore — in-memory реализация Storage с теми же условными
// семантиками, что и у Postgres-хранилища. Мьютекс даёт атомарность
// условного закрепления, как транзакция с WHERE-предусловием.
type memStore struct {
	mu          sync.Mutex
	orders      map[int]*models.Order
	labs        map[int]*models.Lab
	specs       map[int]map[string]models.Specialization
	prices      map[int]map[string]models.LabPrice
	preferred   map[int][]models.PreferredLab
	claims      map[int]*models.Claim
	nextOrderID int
	nextClaimID int

	// Сколько первых вызовов RefusePendingClaims должно упасть —
	// имитация частичного сбоя для проверки ретрая
	refuseFailures int
}

func newMemStore() *memStore {
	return &memStore{
		orders:      make(map[int]*models.Order),
		labs:        make(map[int]*models.Lab),
		specs:       make(map[int]map[string]models.Specialization),
		prices:      make(map[int]map[string]models.LabPrice),
		preferred:   make(map[int][]models.PreferredLab),
		claims:      make(map[int]*models.Claim),
		nextOrderID: 1,
		nextClaimID: 1,
	}
}

func (m *memStore) addLab(lab models.Lab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := lab
	m.labs[lab.ID] = &l
}

func (m *memStore) addSpec(sp models.Specialization) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.specs[sp.LabID] == nil {
		m.specs[sp.LabID] = make(map[string]models.Specialization)
	}
	m.specs[sp.LabID][sp.Category] = sp
}

func (m *memStore) addPrice(p models.LabPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prices[p.LabID] == nil {
		m.prices[p.LabID] = make(map[string]models.LabPrice)
	}
	m.prices[p.LabID][p.Category] = p
}

func (m *memStore) addPreferred(p models.PreferredLab) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferred[p.DoctorID] = append(m.preferred[p.DoctorID], p)
}

func (m *memStore) GetOrder(ctx context.Context, orderID int) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) CreateOrder(ctx context.Context, o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = m.nextOrderID
	m.nextOrderID++
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memStore) GetLab(ctx context.Context, labID int) (*models.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labs[labID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) EligibleLabs(ctx context.Context, category string) ([]models.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var labs []models.Lab
	for _, l := range m.labs {
		if !l.Active || l.CurrentLoad >= l.MaxCapacity {
			continue
		}
		if _, ok := m.specs[l.ID][category]; !ok {
			continue
		}
		labs = append(labs, *l)
	}
	return labs, nil
}

func (m *memStore) ActiveLabs(ctx context.Context) ([]models.Lab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var labs []models.Lab
	for _, l := range m.labs {
		if l.Active {
			labs = append(labs, *l)
		}
	}
	return labs, nil
}

func (m *memStore) GetSpecialization(ctx context.Context, labID int, category string) (*models.Specialization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sp, ok := m.specs[labID][category]
	if !ok {
		return nil, nil
	}
	return &sp, nil
}

func (m *memStore) GetLabPrice(ctx context.Context, labID int, category string) (*models.LabPrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[labID][category]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) GetPreferredLabs(ctx context.Context, doctorID int) ([]models.PreferredLab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PreferredLab(nil), m.preferred[doctorID]...), nil
}

func (m *memStore) CreateClaim(ctx context.Context, c *models.Claim) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[c.OrderID]
	if !ok {
		return ErrNotFound
	}
	// Предусловие вставки, как WHERE EXISTS у Postgres-хранилища
	if !o.OpenForBids || o.AssignedLabID != nil {
		return ErrOrderNotOpen
	}
	for _, existing := range m.claims {
		if existing.OrderID == c.OrderID && existing.LabID == c.LabID {
			return ErrDuplicateClaim
		}
	}
	c.ID = m.nextClaimID
	m.nextClaimID++
	cp := *c
	m.claims[c.ID] = &cp
	return nil
}

func (m *memStore) GetClaim(ctx context.Context, claimID int) (*models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) DeleteClaim(ctx context.Context, claimID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[claimID]
	if !ok || c.Status != models.ClaimPending {
		return ErrNotFound
	}
	delete(m.claims, claimID)
	return nil
}

func (m *memStore) ClaimsForOrder(ctx context.Context, orderID int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var claims []models.Claim
	for _, c := range m.claims {
		if c.OrderID == orderID {
			claims = append(claims, *c)
		}
	}
	return claims, nil
}

func (m *memStore) BindOrderToClaim(ctx context.Context, orderID, claimID, labID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if !o.OpenForBids || o.AssignedLabID != nil {
		return ErrAlreadyBound
	}
	c, ok := m.claims[claimID]
	if !ok || c.Status != models.ClaimPending {
		return ErrNotFound
	}
	l, ok := m.labs[labID]
	if !ok {
		return ErrNotFound
	}
	if l.CurrentLoad >= l.MaxCapacity {
		return ErrCapacityExceeded
	}

	o.OpenForBids = false
	o.AssignedLabID = &l.ID
	c.Status = models.ClaimAccepted
	l.CurrentLoad++
	return nil
}

func (m *memStore) BindOrderDirect(ctx context.Context, orderID, labID, userID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return 0, ErrNotFound
	}
	if !o.OpenForBids || o.AssignedLabID != nil {
		return 0, ErrAlreadyBound
	}
	l, ok := m.labs[labID]
	if !ok {
		return 0, ErrNotFound
	}

	var claimID int
	for _, c := range m.claims {
		if c.OrderID == orderID && c.LabID == labID {
			c.Status = models.ClaimAccepted
			claimID = c.ID
			break
		}
	}
	if claimID == 0 {
		claimID = m.nextClaimID
		m.nextClaimID++
		m.claims[claimID] = &models.Claim{
			ID:      claimID,
			OrderID: orderID,
			LabID:   labID,
			UserID:  userID,
			Status:  models.ClaimAccepted,
		}
	}

	o.OpenForBids = false
	o.AssignedLabID = &l.ID
	l.CurrentLoad++
	return claimID, nil
}

func (m *memStore) RefusePendingClaims(ctx context.Context, orderID, winnerClaimID int) ([]models.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refuseFailures > 0 {
		m.refuseFailures--
		return nil, errors.New("transient storage failure")
	}

	var refused []models.Claim
	for _, c := range m.claims {
		if c.OrderID == orderID && c.ID != winnerClaimID && c.Status == models.ClaimPending {
			c.Status = models.ClaimRefused
			refused = append(refused, *c)
		}
	}
	return refused, nil
}

// memNotifier запоминает события для проверок
type memNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *memNotifier) Notify(ctx context.Context, e Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
}

func (n *memNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]EventKind, 0, len(n.events))
	for _, e := range n.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
