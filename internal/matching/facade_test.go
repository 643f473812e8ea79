package matching

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"labmarket/models"
)

func TestRankLabsWithQuotes(t *testing.T) {
	s, store, _ := newTestService()
	ctx := context.Background()

	store.addLab(lab(1, 9.0, 2, 10))
	store.addLab(lab(2, 9.5, 9, 10))
	store.addSpec(models.Specialization{LabID: 1, Category: "Zirconia", Level: models.ExpertiseExpert, TurnaroundDays: 5})
	store.addSpec(models.Specialization{LabID: 2, Category: "Zirconia", Level: models.ExpertiseIntermediate, TurnaroundDays: 6})
	store.addPrice(models.LabPrice{LabID: 1, Category: "Zirconia", FixedPrice: f64(100)})
	store.addPreferred(models.PreferredLab{DoctorID: 7, LabID: 1, Priority: 1})

	candidates, err := s.RankLabs(ctx, 7, "Zirconia", models.UrgencyUrgent, ModeTrustRanked, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	// Предпочтение врача важнее рейтинга, расчёт приходит сразу
	require.Equal(t, 1, candidates[0].Lab.ID)
	require.True(t, candidates[0].Preferred)
	require.Equal(t, PriceFixed, candidates[0].Quote.Kind)
	require.InDelta(t, 120.0, candidates[0].Quote.Amount, 1e-9)

	require.Equal(t, 2, candidates[1].Lab.ID)
	require.Equal(t, PriceContact, candidates[1].Quote.Kind)
}

func TestRankLabsEmptyEligibleSet(t *testing.T) {
	s, store, _ := newTestService()

	// Активная лаборатория есть, но без специализации по категории
	store.addLab(lab(1, 9.0, 0, 10))

	candidates, err := s.RankLabs(context.Background(), 7, "Implant", models.UrgencyNormal, ModeTrustRanked, 10)
	require.NoError(t, err)
	require.Empty(t, candidates)

	// Fallback: открытый рынок до неё дотягивается
	candidates, err = s.RankLabs(context.Background(), 7, "Implant", models.UrgencyNormal, ModeOpenMarket, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}

func TestServiceQuoteLabNotFound(t *testing.T) {
	s, _, _ := newTestService()

	_, err := s.Quote(context.Background(), 42, "Zirconia", models.UrgencyNormal)
	require.ErrorIs(t, err, ErrNotFound)
}
