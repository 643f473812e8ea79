package models

import "time"

type (
	OrderStatus string // Производственный статус заказа
	Urgency     string // Срочность заказа
	ClaimStatus string // Статус заявки лаборатории на заказ
	Expertise   string // Уровень специализации лаборатории
	Role        string // Роль пользователя
)

const (
	OrderPending          OrderStatus = "Pending"          // Заказ создан, работа не началась
	OrderInProgress       OrderStatus = "InProgress"       // Лаборатория выполняет работу
	OrderReadyForQC       OrderStatus = "ReadyForQC"       // Работа готова к контролю качества
	OrderReadyForDelivery OrderStatus = "ReadyForDelivery" // Готово к выдаче
	OrderDelivered        OrderStatus = "Delivered"        // Заказ выдан врачу

	UrgencyNormal Urgency = "Normal"
	UrgencyUrgent Urgency = "Urgent"

	ClaimPending  ClaimStatus = "Pending"  // Заявка подана, решения нет
	ClaimAccepted ClaimStatus = "Accepted" // Заявка выиграла, заказ закреплён
	ClaimRefused  ClaimStatus = "Refused"  // Заявка проиграла

	ExpertiseBasic        Expertise = "basic"
	ExpertiseIntermediate Expertise = "intermediate"
	ExpertiseExpert       Expertise = "expert"

	RoleDoctor   Role = "doctor"
	RoleLabStaff Role = "lab_staff"
	RoleAdmin    Role = "administrator"
)

// Категории реставраций, которые принимает маркетплейс
var RestorationCategories = []string{"Zirconia", "MetalCeramic", "EMax", "Implant", "Denture"}

// Сущность Заказа
type Order struct {
	ID            int         `db:"id" json:"id"`
	DoctorID      int         `db:"doctor_id" json:"doctorId" validate:"required"`
	Category      string      `db:"category" json:"category" validate:"required"`
	Urgency       Urgency     `db:"urgency" json:"urgency" validate:"required,oneof=Normal Urgent"`
	Budget        *float64    `db:"budget" json:"budget,omitempty"`
	Comment       string      `db:"comment" json:"comment"`
	OpenForBids   bool        `db:"open_for_bids" json:"openForBids"`
	AssignedLabID *int        `db:"assigned_lab_id" json:"assignedLabId,omitempty"`
	Status        OrderStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `db:"updated_at" json:"-"`
}

// Bound сообщает, закреплён ли заказ за лабораторией.
// Поля самого заказа — единственный авторитетный источник: по статусу
// отдельной заявки судить о закреплении нельзя.
func (o *Order) Bound() bool {
	return !o.OpenForBids && o.AssignedLabID != nil
}

// Сущность Лаборатории
type Lab struct {
	ID                   int       `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name" validate:"required,max=100"`
	MaxCapacity          int       `db:"max_capacity" json:"maxCapacity"`
	CurrentLoad          int       `db:"current_load" json:"currentLoad"`
	StandardSLADays      int       `db:"standard_sla_days" json:"standardSlaDays"`
	UrgentSLADays        int       `db:"urgent_sla_days" json:"urgentSlaDays"`
	PricingTier          string    `db:"pricing_tier" json:"pricingTier"`
	TrustScore           float64   `db:"trust_score" json:"trustScore"`
	RushSurchargePercent *float64  `db:"rush_surcharge_percent" json:"rushSurchargePercent,omitempty"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"-"`
}

// AvailableCapacityFraction — доля свободной мощности, от 0 до 1.
func (l *Lab) AvailableCapacityFraction() float64 {
	if l.MaxCapacity <= 0 {
		return 0
	}
	return float64(l.MaxCapacity-l.CurrentLoad) / float64(l.MaxCapacity)
}

// Специализация лаборатории по категории реставрации
type Specialization struct {
	LabID          int       `db:"lab_id" json:"labId"`
	Category       string    `db:"category" json:"category"`
	Level          Expertise `db:"level" json:"level"`
	TurnaroundDays int       `db:"turnaround_days" json:"turnaroundDays"`
}

// Прайс лаборатории по категории: либо фиксированная цена, либо вилка,
// либо ничего ("цена по запросу")
type LabPrice struct {
	LabID        int      `db:"lab_id" json:"labId"`
	Category     string   `db:"category" json:"category"`
	FixedPrice   *float64 `db:"fixed_price" json:"fixedPrice,omitempty"`
	MinPrice     *float64 `db:"min_price" json:"minPrice,omitempty"`
	MaxPrice     *float64 `db:"max_price" json:"maxPrice,omitempty"`
	IncludesRush bool     `db:"includes_rush" json:"includesRush"`
}

// Предпочитаемая лаборатория врача; только порядок выдачи, не фильтр
type PreferredLab struct {
	DoctorID int `db:"doctor_id" json:"doctorId"`
	LabID    int `db:"lab_id" json:"labId"`
	Priority int `db:"priority" json:"priority"`
}

// Заявка лаборатории на открытый заказ
type Claim struct {
	ID        int         `db:"id" json:"id"`
	OrderID   int         `db:"order_id" json:"orderId" validate:"required"`
	LabID     int         `db:"lab_id" json:"labId" validate:"required"`
	UserID    int         `db:"user_id" json:"userId"`
	Status    ClaimStatus `db:"status" json:"status"`
	Price     *float64    `db:"price" json:"price,omitempty"`
	Comment   string      `db:"comment" json:"comment" validate:"max=500"`
	CreatedAt time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time   `db:"updated_at" json:"-"`
}

// Сущность Пользователя (из БД, для связи)
type User struct {
	ID        int       `db:"id" json:"id"`
	Username  string    `db:"username" json:"username"`
	Role      Role      `db:"role" json:"role"`
	LabID     *int      `db:"lab_id" json:"labId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}
