package matching

import (
	"sort"

	"labmarket/models"
)

// Режим подбора лабораторий
type Mode string

const (
	// Ранжирование по доверию: только активные лаборатории со
	// специализацией и свободной мощностью, предпочитаемые врачом — первыми
	ModeTrustRanked Mode = "TrustRanked"
	// Открытый рынок: любая активная лаборатория, без фильтра по
	// специализации и без приоритета предпочтений
	ModeOpenMarket Mode = "OpenMarket"
)

// RankedLab — позиция лаборатории в выдаче рекомендаций
type RankedLab struct {
	Lab       models.Lab `json:"lab"`
	Score     float64    `json:"score"`
	Preferred bool       `json:"preferred"`
	priority  int
}

// rankLabs упорядочивает лаборатории по политике выдачи.
// Предпочтение врача — явный override рейтинга, не tie-break:
// предпочитаемые идут первыми в порядке приоритета врача независимо от
// score. Остальные — по trust_score * доля свободной мощности, при
// равенстве — меньшая текущая загрузка, затем меньший id (детерминизм).
func rankLabs(labs []models.Lab, preferred []models.PreferredLab, mode Mode, limit int) []RankedLab {
	prefPriority := make(map[int]int, len(preferred))
	if mode == ModeTrustRanked {
		for _, p := range preferred {
			prefPriority[p.LabID] = p.Priority
		}
	}

	ranked := make([]RankedLab, 0, len(labs))
	for _, lab := range labs {
		if !lab.Active {
			continue
		}
		if mode == ModeTrustRanked && lab.CurrentLoad >= lab.MaxCapacity {
			continue
		}
		entry := RankedLab{
			Lab:   lab,
			Score: lab.TrustScore * lab.AvailableCapacityFraction(),
		}
		if prio, ok := prefPriority[lab.ID]; ok {
			entry.Preferred = true
			entry.priority = prio
		}
		ranked = append(ranked, entry)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Preferred != b.Preferred {
			return a.Preferred
		}
		if a.Preferred && b.Preferred && a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Lab.CurrentLoad != b.Lab.CurrentLoad {
			return a.Lab.CurrentLoad < b.Lab.CurrentLoad
		}
		return a.Lab.ID < b.Lab.ID
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
