package fetchfinancingoffers

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "credit-evaluation-workers/internal/common/errors"
	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeCatalog struct {
	offers       []models.FinancingOffer
	err          error
	gotBankIDs   []int64
	gotAsOf      time.Time
	motorcycles  map[int64][]int64
	restrictions map[int64]models.OfferRestrictions
}

func (f *fakeCatalog) OffersForBanks(_ context.Context, bankIDs []int64, asOf time.Time) ([]models.FinancingOffer, error) {
	f.gotBankIDs = bankIDs
	f.gotAsOf = asOf
	return f.offers, f.err
}

func (f *fakeCatalog) OfferIDsForMotorcycle(_ context.Context, id int64) ([]int64, error) {
	return f.motorcycles[id], nil
}

func (f *fakeCatalog) OfferIDsForBrand(context.Context, string) ([]int64, error) {
	return nil, nil
}

func (f *fakeCatalog) OfferRestrictions(context.Context, []int64) (map[int64]models.OfferRestrictions, error) {
	return f.restrictions, nil
}

type fakeBanks struct {
	banks []models.Bank
	err   error
	calls int
}

func (f *fakeBanks) ActiveBanks(context.Context) ([]models.Bank, error) {
	f.calls++
	return f.banks, f.err
}

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func createOffer(id, bankID int64, low, high float64) models.FinancingOffer {
	return models.FinancingOffer{
		ID:                  id,
		BankID:              bankID,
		LowestInterestRate:  low,
		HighestInterestRate: high,
		MinInvoiceValue:     10000,
		MaxInvoiceValue:     100000,
		MinDownpayment:      0.1,
		MaxDownpayment:      0.3,
		MinLoanTermMonths:   12,
		MaxLoanTermMonths:   36,
		StartDate:           time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:             time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		IsActive:            true,
	}
}

func createTestHandler(t *testing.T, catalog *fakeCatalog, banks *fakeBanks) *Handler {
	config := &Config{Timeout: 10 * time.Second, Now: func() time.Time { return testNow }}
	return NewHandler(config, offers.NewFilter(catalog, logger.NewTestLogger(t)), banks, logger.NewTestLogger(t))
}

func createInput() *Input {
	return &Input{InvoiceValue: 50000, DownPayment: 0.2, FinanceTermMonths: 24}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	catalog := &fakeCatalog{offers: []models.FinancingOffer{
		createOffer(11, 1, 10, 14),
		createOffer(12, 1, 8, 12),
		createOffer(21, 2, 16, 20),
	}}
	banks := &fakeBanks{banks: []models.Bank{{ID: 1, Name: "BBVA"}, {ID: 2, Name: "AFIRME"}}}
	handler := createTestHandler(t, catalog, banks)

	output, err := handler.Execute(context.Background(), createInput())

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, catalog.gotBankIDs)
	assert.Equal(t, testNow, catalog.gotAsOf)
	assert.Len(t, output.ValidOffers, 3)
	assert.Empty(t, output.OptionalOffers)
	require.Len(t, output.BestOffers, 2)
	assert.Equal(t, int64(12), output.BestOffers[1].OfferID)
	assert.Equal(t, 10.0, output.BestOffers[1].AvgInterestRate)
	assert.Equal(t, int64(21), output.BestOffers[2].OfferID)
}

func TestHandler_Execute_ExplicitBanksAndDate(t *testing.T) {
	catalog := &fakeCatalog{offers: []models.FinancingOffer{createOffer(11, 1, 10, 14)}}
	banks := &fakeBanks{}
	handler := createTestHandler(t, catalog, banks)

	input := createInput()
	input.BankIDs = []int64{1}
	input.RequestDate = "2025-03-01"

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Zero(t, banks.calls)
	assert.Equal(t, []int64{1}, catalog.gotBankIDs)
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), catalog.gotAsOf)
	assert.Len(t, output.ValidOffers, 1)
}

func TestHandler_Execute_ValidationOffersOnly(t *testing.T) {
	catalog := &fakeCatalog{offers: []models.FinancingOffer{createOffer(11, 1, 10, 14)}}
	handler := createTestHandler(t, catalog, &fakeBanks{})

	input := createInput()
	input.BankIDs = []int64{1}
	input.FinanceTermMonths = 48
	input.ValidationOffersOnly = true

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, output.ValidOffers)
	require.Len(t, output.OptionalOffers, 1)
	assert.Empty(t, output.BestOffers)
}

func TestHandler_Execute_MotorcycleRestriction(t *testing.T) {
	catalog := &fakeCatalog{
		offers:      []models.FinancingOffer{createOffer(11, 1, 10, 14), createOffer(12, 1, 8, 12)},
		motorcycles: map[int64][]int64{9: {11}},
	}
	handler := createTestHandler(t, catalog, &fakeBanks{})

	motorcycleID := int64(9)
	input := createInput()
	input.BankIDs = []int64{1}
	input.MotorcycleID = &motorcycleID

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	require.Len(t, output.ValidOffers, 1)
	assert.Equal(t, int64(11), output.ValidOffers[0].ID)
}

func TestHandler_Execute_SkippedOffers(t *testing.T) {
	broken := createOffer(13, 1, 10, 14)
	minAmt, maxAmt := 60000.0, 20000.0
	broken.MinAmountToFinance = &minAmt
	broken.MaxAmountToFinance = &maxAmt
	broken.RestrictionType = models.RestrictionAmountToFinance

	catalog := &fakeCatalog{offers: []models.FinancingOffer{broken}}
	handler := createTestHandler(t, catalog, &fakeBanks{})

	input := createInput()
	input.BankIDs = []int64{1}

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Empty(t, output.ValidOffers)
	assert.Equal(t, []int64{13}, output.SkippedOffers)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_InvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"zero invoice", func(in *Input) { in.InvoiceValue = 0 }},
		{"negative down payment", func(in *Input) { in.DownPayment = -0.1 }},
		{"down payment of one", func(in *Input) { in.DownPayment = 1 }},
		{"zero term", func(in *Input) { in.FinanceTermMonths = 0 }},
		{"bad date", func(in *Input) { in.RequestDate = "15/06/2025" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := createTestHandler(t, &fakeCatalog{}, &fakeBanks{})
			input := createInput()
			tt.mutate(input)

			output, err := handler.Execute(context.Background(), input)

			assert.Nil(t, output)
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
		})
	}
}

func TestHandler_Execute_BankCatalogError(t *testing.T) {
	banks := &fakeBanks{err: apperrors.NewQueryExecutionFailedError("active_banks", errors.New("down"))}
	handler := createTestHandler(t, &fakeCatalog{}, banks)

	_, err := handler.Execute(context.Background(), createInput())

	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
}

func TestHandler_Execute_CatalogError(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("relation does not exist")}
	handler := createTestHandler(t, catalog, &fakeBanks{})

	input := createInput()
	input.BankIDs = []int64{1}

	_, err := handler.Execute(context.Background(), input)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeInternal, apperrors.Normalize(err).Code)
}
