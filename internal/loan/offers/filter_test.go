package offers

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes & Helpers
// ==========================

type fakeCatalog struct {
	offers       []models.FinancingOffer
	byMotorcycle map[int64][]int64
	byBrand      map[string][]int64
	restrictions map[int64]models.OfferRestrictions
	err          error
	offersCalled bool
}

func (f *fakeCatalog) OffersForBanks(ctx context.Context, bankIDs []int64, asOf time.Time) ([]models.FinancingOffer, error) {
	f.offersCalled = true
	if f.err != nil {
		return nil, f.err
	}
	return f.offers, nil
}

func (f *fakeCatalog) OfferIDsForMotorcycle(ctx context.Context, motorcycleID int64) ([]int64, error) {
	return f.byMotorcycle[motorcycleID], nil
}

func (f *fakeCatalog) OfferIDsForBrand(ctx context.Context, brandName string) ([]int64, error) {
	return f.byBrand[brandName], nil
}

func (f *fakeCatalog) OfferRestrictions(ctx context.Context, offerIDs []int64) (map[int64]models.OfferRestrictions, error) {
	return f.restrictions, nil
}

var requestDay = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }
func i64(v int64) *int64     { return &v }

func baseOffer(id, bankID int64) models.FinancingOffer {
	return models.FinancingOffer{
		ID:                  id,
		BankID:              bankID,
		LowestInterestRate:  10,
		HighestInterestRate: 14,
		MinInvoiceValue:     10000,
		MaxInvoiceValue:     100000,
		MinDownpayment:      0.1,
		MaxDownpayment:      0.3,
		MinLoanTermMonths:   12,
		MaxLoanTermMonths:   36,
		StartDate:           requestDay.AddDate(0, -1, 0),
		EndDate:             requestDay.AddDate(0, 1, 0),
		IsActive:            true,
	}
}

func baseParams() Params {
	return Params{
		InvoiceValue:   50000,
		RequestDate:    requestDay,
		BankIDs:        []int64{1, 2},
		LoanTermMonths: 24,
		DownPayment:    0.2,
	}
}

func ids(offers []models.FinancingOffer) []int64 {
	out := make([]int64, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.ID)
	}
	return out
}

// ==========================
// FilterOffers
// ==========================

func TestFilterOffers_BaseFilter(t *testing.T) {
	inactive := baseOffer(2, 1)
	inactive.IsActive = false

	expired := baseOffer(3, 1)
	expired.EndDate = requestDay.AddDate(0, 0, -1)

	otherBank := baseOffer(4, 9)

	cheapInvoice := baseOffer(5, 1)
	cheapInvoice.MaxInvoiceValue = 30000

	lastDay := baseOffer(6, 2)
	lastDay.EndDate = time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	result := FilterOffers([]models.FinancingOffer{baseOffer(1, 1), inactive, expired, otherBank, cheapInvoice, lastDay}, baseParams(), nil)

	assert.Equal(t, []int64{1, 6}, ids(result.ValidOffers))
	assert.Empty(t, result.OptionalOffers)
}

func TestFilterOffers_TermAndDownPayment(t *testing.T) {
	shortTerm := baseOffer(2, 1)
	shortTerm.MaxLoanTermMonths = 18

	highDown := baseOffer(3, 1)
	highDown.MinDownpayment = 0.25

	offers := []models.FinancingOffer{baseOffer(1, 1), shortTerm, highDown}

	t.Run("dropped outside validation mode", func(t *testing.T) {
		result := FilterOffers(offers, baseParams(), nil)
		assert.Equal(t, []int64{1}, ids(result.ValidOffers))
		assert.Empty(t, result.OptionalOffers)
	})

	t.Run("optional in validation mode", func(t *testing.T) {
		p := baseParams()
		p.ValidationOffersOnly = true
		result := FilterOffers(offers, p, nil)
		assert.Equal(t, []int64{1}, ids(result.ValidOffers))
		assert.Equal(t, []int64{2, 3}, ids(result.OptionalOffers))
	})
}

func TestFilterOffers_AllowedIDs(t *testing.T) {
	offers := []models.FinancingOffer{baseOffer(1, 1), baseOffer(2, 1), baseOffer(3, 2)}
	result := FilterOffers(offers, baseParams(), map[int64]struct{}{2: {}, 3: {}})
	assert.Equal(t, []int64{2, 3}, ids(result.ValidOffers))
}

func TestFilterOffers_InvertedBoundsSkipped(t *testing.T) {
	broken := baseOffer(7, 1)
	broken.RestrictionType = models.RestrictionInvoiceValue
	broken.MinAmountToFinance = f64(90000)
	broken.MaxAmountToFinance = f64(20000)

	result := FilterOffers([]models.FinancingOffer{broken, baseOffer(1, 1)}, baseParams(), nil)

	assert.Equal(t, []int64{1}, ids(result.ValidOffers))
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, int64(7), result.Skipped[0].OfferID)
	assert.ErrorIs(t, result.Skipped[0].Reason, ErrInvalidAmountRange)
}

// ==========================
// IsOfferValidForAmount
// ==========================

func TestIsOfferValidForAmount(t *testing.T) {
	// invoice 50000, down 0.2 → amount to finance 40000
	amount := AmountToFinance(50000, 0.2)

	tests := []struct {
		name        string
		restriction models.RestrictionType
		min, max    *float64
		want        bool
	}{
		{"no restriction", models.RestrictionNone, f64(1), f64(2), true},
		{"no bounds", models.RestrictionAmountToFinance, nil, nil, true},
		{"amount within", models.RestrictionAmountToFinance, f64(30000), f64(45000), true},
		{"amount above max", models.RestrictionAmountToFinance, f64(10000), f64(35000), false},
		{"amount below min", models.RestrictionAmountToFinance, f64(45000), nil, false},
		{"zero min unset", models.RestrictionAmountToFinance, f64(0), f64(45000), true},
		{"invoice within", models.RestrictionInvoiceValue, f64(45000), f64(60000), true},
		{"invoice above max", models.RestrictionInvoiceValue, nil, f64(45000), false},
		{"both pass", models.RestrictionAmountAndInvoice, f64(35000), f64(55000), true},
		{"invoice fails", models.RestrictionAmountAndInvoice, f64(35000), f64(45000), false},
		{"amount fails", models.RestrictionAmountAndInvoice, f64(42000), f64(55000), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offer := baseOffer(1, 1)
			offer.RestrictionType = tt.restriction
			offer.MinAmountToFinance = tt.min
			offer.MaxAmountToFinance = tt.max

			ok, err := IsOfferValidForAmount(offer, 50000, amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestIsOfferValidForAmount_InvertedBoundsAlwaysInvalid(t *testing.T) {
	restrictions := []models.RestrictionType{
		models.RestrictionNone,
		models.RestrictionAmountToFinance,
		models.RestrictionInvoiceValue,
		models.RestrictionAmountAndInvoice,
	}
	for _, r := range restrictions {
		offer := baseOffer(1, 1)
		offer.RestrictionType = r
		offer.MinAmountToFinance = f64(60000)
		offer.MaxAmountToFinance = f64(1000)

		ok, err := IsOfferValidForAmount(offer, 50000, AmountToFinance(50000, 0.2))
		assert.False(t, ok, string(r))
		assert.ErrorIs(t, err, ErrInvalidAmountRange)
	}
}

func TestAmountToFinance(t *testing.T) {
	assert.Equal(t, "40000", AmountToFinance(50000, 0.2).String())
	assert.Equal(t, "50000", AmountToFinance(50000, 0).String())
}

// ==========================
// Filter.FetchValid
// ==========================

func TestFetchValid_RestrictionUnion(t *testing.T) {
	catalog := &fakeCatalog{
		offers:       []models.FinancingOffer{baseOffer(1, 1), baseOffer(2, 1), baseOffer(3, 2)},
		byMotorcycle: map[int64][]int64{77: {1}},
		byBrand:      map[string][]int64{"Italika": {3}},
	}
	p := baseParams()
	p.MotorcycleID = i64(77)
	p.BrandName = "Italika"

	result, err := NewFilter(catalog, logger.NewTestLogger(t)).FetchValid(context.Background(), p)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids(result.ValidOffers))
}

func TestFetchValid_RestrictionWithoutMatches(t *testing.T) {
	catalog := &fakeCatalog{offers: []models.FinancingOffer{baseOffer(1, 1)}}
	p := baseParams()
	p.MotorcycleID = i64(5)

	result, err := NewFilter(catalog, logger.NewTestLogger(t)).FetchValid(context.Background(), p)

	require.NoError(t, err)
	assert.Empty(t, result.ValidOffers)
	assert.Empty(t, result.OptionalOffers)
	assert.False(t, catalog.offersCalled)
}

func TestFetchValid_Annotates(t *testing.T) {
	catalog := &fakeCatalog{
		offers: []models.FinancingOffer{baseOffer(1, 1)},
		restrictions: map[int64]models.OfferRestrictions{
			1: {OfferID: 1, MotorcycleIDs: []int64{77}, BrandIDs: []int64{4}},
		},
	}
	p := baseParams()
	p.WithRestrictions = true

	result, err := NewFilter(catalog, logger.NewTestLogger(t)).FetchValid(context.Background(), p)

	require.NoError(t, err)
	require.Len(t, result.ValidOffers, 1)
	assert.Equal(t, []int64{77}, result.ValidOffers[0].RestrictedMotorcycle)
	assert.Equal(t, []int64{4}, result.ValidOffers[0].RestrictedBrands)
}

func TestFetchValid_CatalogError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("connection refused")}

	_, err := NewFilter(catalog, logger.NewTestLogger(t)).FetchValid(context.Background(), baseParams())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load offers")
}
