package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/common/metrics"
	"credit-evaluation-workers/internal/models"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmountRange = errors.New("min amount to finance greater than max")

// Catalog is the read side of the offer tables.
type Catalog interface {
	OffersForBanks(ctx context.Context, bankIDs []int64, asOf time.Time) ([]models.FinancingOffer, error)
	OfferIDsForMotorcycle(ctx context.Context, motorcycleID int64) ([]int64, error)
	OfferIDsForBrand(ctx context.Context, brandName string) ([]int64, error)
	OfferRestrictions(ctx context.Context, offerIDs []int64) (map[int64]models.OfferRestrictions, error)
}

// Params describes the applicant's request.
type Params struct {
	InvoiceValue         float64
	RequestDate          time.Time
	BankIDs              []int64
	LoanTermMonths       int
	DownPayment          float64
	MotorcycleID         *int64
	BrandName            string
	ValidationOffersOnly bool
	WithRestrictions     bool
}

func (p Params) restricted() bool {
	return p.MotorcycleID != nil || p.BrandName != ""
}

// SkippedOffer records an offer dropped because its catalog data is inconsistent.
type SkippedOffer struct {
	OfferID int64
	Reason  error
}

type FilterResult struct {
	ValidOffers    []models.FinancingOffer `json:"valid_offers"`
	OptionalOffers []models.FinancingOffer `json:"optional_offers"`
	Skipped        []SkippedOffer          `json:"-"`
}

type Filter struct {
	catalog Catalog
	logger  logger.Logger
}

func NewFilter(catalog Catalog, log logger.Logger) *Filter {
	return &Filter{
		catalog: catalog,
		logger:  log.WithFields(map[string]interface{}{"component": "offer_filter"}),
	}
}

// FetchValid loads the candidate offers for p and filters them.
func (f *Filter) FetchValid(ctx context.Context, p Params) (*FilterResult, error) {
	var allowed map[int64]struct{}
	if p.restricted() {
		ids, err := f.restrictionIDs(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			f.logger.Info("no offers tied to motorcycle or brand", map[string]interface{}{
				"motorcycleId": p.MotorcycleID,
				"brandName":    p.BrandName,
			})
			return &FilterResult{ValidOffers: []models.FinancingOffer{}, OptionalOffers: []models.FinancingOffer{}}, nil
		}
		allowed = ids
	}

	candidates, err := f.catalog.OffersForBanks(ctx, p.BankIDs, p.RequestDate)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}

	result := FilterOffers(candidates, p, allowed)
	for _, s := range result.Skipped {
		metrics.OfferIntegrityWarnings.WithLabelValues("amount_range").Inc()
		f.logger.Warn("offer skipped, inconsistent amount bounds", map[string]interface{}{
			"offerId": s.OfferID,
			"error":   s.Reason.Error(),
		})
	}

	if p.WithRestrictions {
		if err := f.annotate(ctx, result); err != nil {
			return nil, err
		}
	}

	f.logger.Info("offers filtered", map[string]interface{}{
		"candidates":      len(candidates),
		"valid":           len(result.ValidOffers),
		"optional":        len(result.OptionalOffers),
		"amountToFinance": AmountToFinance(p.InvoiceValue, p.DownPayment).String(),
		"loanTermMonths":  p.LoanTermMonths,
	})
	return result, nil
}

func (f *Filter) restrictionIDs(ctx context.Context, p Params) (map[int64]struct{}, error) {
	ids := make(map[int64]struct{})
	if p.MotorcycleID != nil {
		byMoto, err := f.catalog.OfferIDsForMotorcycle(ctx, *p.MotorcycleID)
		if err != nil {
			return nil, fmt.Errorf("load motorcycle restrictions: %w", err)
		}
		for _, id := range byMoto {
			ids[id] = struct{}{}
		}
	}
	if p.BrandName != "" {
		byBrand, err := f.catalog.OfferIDsForBrand(ctx, p.BrandName)
		if err != nil {
			return nil, fmt.Errorf("load brand restrictions: %w", err)
		}
		for _, id := range byBrand {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (f *Filter) annotate(ctx context.Context, result *FilterResult) error {
	var ids []int64
	for _, o := range result.ValidOffers {
		ids = append(ids, o.ID)
	}
	for _, o := range result.OptionalOffers {
		ids = append(ids, o.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	restrictions, err := f.catalog.OfferRestrictions(ctx, ids)
	if err != nil {
		return fmt.Errorf("load offer restrictions: %w", err)
	}
	apply := func(list []models.FinancingOffer) {
		for i := range list {
			if r, ok := restrictions[list[i].ID]; ok {
				list[i].RestrictedMotorcycle = r.MotorcycleIDs
				list[i].RestrictedBrands = r.BrandIDs
			}
		}
	}
	apply(result.ValidOffers)
	apply(result.OptionalOffers)
	return nil
}

// FilterOffers applies the date, bank, invoice, term, down payment and
// amount-to-finance checks. allowed, when non-nil, limits the offer ids.
func FilterOffers(candidates []models.FinancingOffer, p Params, allowed map[int64]struct{}) *FilterResult {
	result := &FilterResult{
		ValidOffers:    []models.FinancingOffer{},
		OptionalOffers: []models.FinancingOffer{},
	}

	banks := make(map[int64]struct{}, len(p.BankIDs))
	for _, id := range p.BankIDs {
		banks[id] = struct{}{}
	}
	day := dateOnly(p.RequestDate)
	amount := AmountToFinance(p.InvoiceValue, p.DownPayment)

	for _, offer := range candidates {
		if allowed != nil {
			if _, ok := allowed[offer.ID]; !ok {
				continue
			}
		}
		if !offer.IsActive || day.Before(dateOnly(offer.StartDate)) || day.After(dateOnly(offer.EndDate)) {
			continue
		}
		if _, ok := banks[offer.BankID]; !ok {
			continue
		}
		if p.InvoiceValue < offer.MinInvoiceValue || p.InvoiceValue > offer.MaxInvoiceValue {
			continue
		}

		termOK := offer.MinLoanTermMonths <= p.LoanTermMonths && p.LoanTermMonths <= offer.MaxLoanTermMonths
		downOK := offer.MinDownpayment <= p.DownPayment && p.DownPayment <= offer.MaxDownpayment
		if !p.ValidationOffersOnly && (!termOK || !downOK) {
			continue
		}

		ok, err := IsOfferValidForAmount(offer, p.InvoiceValue, amount)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedOffer{OfferID: offer.ID, Reason: err})
			continue
		}
		if !ok {
			continue
		}

		if termOK && downOK {
			result.ValidOffers = append(result.ValidOffers, offer)
		} else {
			result.OptionalOffers = append(result.OptionalOffers, offer)
		}
	}
	return result
}

// IsOfferValidForAmount checks the offer's amount-to-finance restriction.
// Inverted bounds make the offer invalid whatever the restriction type and
// are reported as ErrInvalidAmountRange. Zero bounds are treated as unset.
func IsOfferValidForAmount(offer models.FinancingOffer, invoiceValue float64, amountToFinance decimal.Decimal) (bool, error) {
	if offer.MinAmountToFinance != nil && offer.MaxAmountToFinance != nil &&
		*offer.MinAmountToFinance > *offer.MaxAmountToFinance {
		return false, fmt.Errorf("%w: offer %d min=%.2f max=%.2f", ErrInvalidAmountRange,
			offer.ID, *offer.MinAmountToFinance, *offer.MaxAmountToFinance)
	}
	if offer.RestrictionType == models.RestrictionNone {
		return true, nil
	}
	if offer.MinAmountToFinance == nil && offer.MaxAmountToFinance == nil {
		return true, nil
	}

	invoice := decimal.NewFromFloat(invoiceValue)
	switch offer.RestrictionType {
	case models.RestrictionAmountToFinance:
		return withinBounds(amountToFinance, offer), nil
	case models.RestrictionInvoiceValue:
		return withinBounds(invoice, offer), nil
	case models.RestrictionAmountAndInvoice:
		return withinBounds(amountToFinance, offer) && withinBounds(invoice, offer), nil
	default:
		return true, nil
	}
}

func withinBounds(v decimal.Decimal, offer models.FinancingOffer) bool {
	if m := offer.MinAmountToFinance; m != nil && *m != 0 && v.LessThan(decimal.NewFromFloat(*m)) {
		return false
	}
	if m := offer.MaxAmountToFinance; m != nil && *m != 0 && v.GreaterThan(decimal.NewFromFloat(*m)) {
		return false
	}
	return true
}

// AmountToFinance is invoice × (1 − down payment fraction).
func AmountToFinance(invoiceValue, downPayment float64) decimal.Decimal {
	return decimal.NewFromFloat(invoiceValue).Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(downPayment)))
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
