package offers

import (
	"encoding/json"
	"testing"

	"credit-evaluation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func termOffer(id, bankID int64, table string) models.FinancingOffer {
	o := baseOffer(id, bankID)
	o.InterestType = models.InterestPerTerm
	o.InterestTerm = json.RawMessage(table)
	return o
}

// ==========================
// EffectiveRate
// ==========================

func TestEffectiveRate(t *testing.T) {
	tests := []struct {
		name    string
		offer   models.FinancingOffer
		term    int
		want    float64
		wantErr bool
	}{
		{"average", baseOffer(1, 1), 24, 12.0, false},
		{"exact term", termOffer(1, 1, `{"12": 10.0, "24": 8.0}`), 24, 8.0, false},
		{"nearest term", termOffer(1, 1, `{"12": 10.0, "24": 8.0}`), 20, 8.0, false},
		{"tie picks lower term", termOffer(1, 1, `{"12": 10.0, "24": 8.0}`), 18, 10.0, false},
		{"string rates", termOffer(1, 1, `{"36": "7.5"}`), 36, 7.5, false},
		{"zero term uses average", termOffer(1, 1, `{"12": 10.0}`), 0, 12.0, false},
		{"empty table falls back", termOffer(1, 1, `{}`), 24, 12.0, true},
		{"malformed falls back", termOffer(1, 1, `{"12": `), 24, 12.0, true},
		{"non numeric key falls back", termOffer(1, 1, `{"doce": 9.0}`), 24, 12.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := EffectiveRate(tt.offer, tt.term)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInterestTerm)
			} else {
				assert.NoError(t, err)
			}
			assert.InDelta(t, tt.want, rate, 1e-9)
		})
	}
}

// ==========================
// SelectBest
// ==========================

func TestSelectBest(t *testing.T) {
	fee := 1500.0
	first := baseOffer(1, 1)
	first.OpeningFee = &fee
	sameRate := baseOffer(2, 1)
	cheaper := termOffer(3, 2, `{"24": 9.0}`)
	pricier := baseOffer(4, 2)

	best, warnings := SelectBest([]models.FinancingOffer{first, sameRate, pricier, cheaper}, 24)

	assert.Empty(t, warnings)
	require.Len(t, best, 2)
	assert.Equal(t, BestOffer{OfferID: 1, AvgInterestRate: 12.0, OpeningFee: &fee}, best[1])
	assert.Equal(t, int64(3), best[2].OfferID)
	assert.Equal(t, 9.0, best[2].AvgInterestRate)
}

func TestSelectBest_CollectsWarnings(t *testing.T) {
	best, warnings := SelectBest([]models.FinancingOffer{termOffer(1, 1, `[]`)}, 24)

	require.Len(t, warnings, 1)
	assert.ErrorIs(t, warnings[0], ErrInvalidInterestTerm)
	assert.Equal(t, 12.0, best[1].AvgInterestRate)
}

func TestEndToEndOfferScenario(t *testing.T) {
	result := FilterOffers([]models.FinancingOffer{baseOffer(1, 1)}, baseParams(), nil)
	require.Len(t, result.ValidOffers, 1)

	best, _ := SelectBest(result.ValidOffers, 24)
	assert.Equal(t, 12.0, best[1].AvgInterestRate)
	assert.Equal(t, int64(1), best[1].OfferID)
}
