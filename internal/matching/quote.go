package matching

import (
	"fmt"
	"time"

	"labmarket/models"
)

// Надбавка за срочность по умолчанию, если лаборатория не задала свою
const DefaultRushSurchargePercent = 20.0

// Вид цены в предложении
type PriceKind string

const (
	PriceFixed   PriceKind = "Fixed"   // Фиксированная цена (с учётом надбавки)
	PriceRange   PriceKind = "Range"   // Вилка (min, max), надбавка не применяется
	PriceContact PriceKind = "Contact" // Цена по запросу — штатное состояние, не ошибка
)

// Quote — расчёт срока и цены для пары (лаборатория, заказ)
type Quote struct {
	EstimatedDelivery time.Time `json:"estimatedDelivery"`
	Kind              PriceKind `json:"priceKind"`
	Amount            float64   `json:"amount,omitempty"`
	MinAmount         float64   `json:"minAmount,omitempty"`
	MaxAmount         float64   `json:"maxAmount,omitempty"`
}

// PriceDisplay — строка для показа врачу
func (q Quote) PriceDisplay() string {
	switch q.Kind {
	case PriceFixed:
		return fmt.Sprintf("%.2f", q.Amount)
	case PriceRange:
		return fmt.Sprintf("%.2f–%.2f", q.MinAmount, q.MaxAmount)
	default:
		return "contact for pricing"
	}
}

// buildQuote считает срок и цену.
// Срок: now + turnaround в календарных днях; берётся срок специализации
// по категории, иначе стандартный/срочный SLA лаборатории по urgency.
// Цена: фиксированная — с надбавкой за Urgent, если rush не включён в
// прайс; вилка — как есть; иначе "цена по запросу".
func buildQuote(now time.Time, lab *models.Lab, spec *models.Specialization, price *models.LabPrice, urgency models.Urgency) Quote {
	days := lab.StandardSLADays
	if urgency == models.UrgencyUrgent {
		days = lab.UrgentSLADays
	}
	if spec != nil && spec.TurnaroundDays > 0 {
		days = spec.TurnaroundDays
	}

	q := Quote{
		EstimatedDelivery: now.AddDate(0, 0, days),
		Kind:              PriceContact,
	}
	if price == nil {
		return q
	}

	switch {
	case price.FixedPrice != nil:
		q.Kind = PriceFixed
		q.Amount = *price.FixedPrice
		if urgency == models.UrgencyUrgent && !price.IncludesRush {
			pct := DefaultRushSurchargePercent
			if lab.RushSurchargePercent != nil {
				pct = *lab.RushSurchargePercent
			}
			q.Amount = q.Amount * (1 + pct/100)
		}
	case price.MinPrice != nil && price.MaxPrice != nil:
		q.Kind = PriceRange
		q.MinAmount = *price.MinPrice
		q.MaxAmount = *price.MaxPrice
	}
	return q
}
