package fetchfinancingoffers

import (
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/models"
)

type Input struct {
	InvoiceValue         float64 `json:"invoiceValue"`
	DownPayment          float64 `json:"downPayment"`
	FinanceTermMonths    int     `json:"financeTermMonths"`
	RequestDate          string  `json:"requestDate,omitempty"`
	BankIDs              []int64 `json:"bankIds,omitempty"`
	MotorcycleID         *int64  `json:"motorcycleId,omitempty"`
	BrandName            string  `json:"brandName,omitempty"`
	ValidationOffersOnly bool    `json:"validationOffersOnly"`
	WithRestrictions     bool    `json:"withRestrictions"`
}

type Output struct {
	ValidOffers    []models.FinancingOffer    `json:"validOffers"`
	OptionalOffers []models.FinancingOffer    `json:"optionalOffers"`
	BestOffers     map[int64]offers.BestOffer `json:"bestOffers"`
	SkippedOffers  []int64                    `json:"skippedOffers,omitempty"`
}
