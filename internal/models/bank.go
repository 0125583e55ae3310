package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Bank is a financial institution that issues offers and is the dispatch key
// for underwriting rules.
type Bank struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Code is the upper-cased bank name used for rule lookups.
func (b Bank) Code() string {
	return strings.ToUpper(strings.TrimSpace(b.Name))
}

type RestrictionType string

const (
	RestrictionNone             RestrictionType = ""
	RestrictionAmountToFinance  RestrictionType = "AMOUNT_TO_FINANCE"
	RestrictionInvoiceValue     RestrictionType = "INVOICE_VALUE"
	RestrictionAmountAndInvoice RestrictionType = "AMOUNT_AND_INVOICE"
)

type InterestType string

const (
	InterestPerTerm InterestType = "interest_per_term"
	InterestAverage InterestType = "avg_interest"
)

// FinancingOffer is one bank's time-boxed financing product.
type FinancingOffer struct {
	ID                   int64           `json:"id"`
	BankID               int64           `json:"bankId"`
	LowestInterestRate   float64         `json:"lowestInterestRate"`
	HighestInterestRate  float64         `json:"highestInterestRate"`
	OpeningFee           *float64        `json:"openingFee,omitempty"`
	MinInvoiceValue      float64         `json:"minInvoiceValue"`
	MaxInvoiceValue      float64         `json:"maxInvoiceValue"`
	MinDownpayment       float64         `json:"minDownpayment"`
	MaxDownpayment       float64         `json:"maxDownpayment"`
	MinLoanTermMonths    int             `json:"minLoanTermMonths"`
	MaxLoanTermMonths    int             `json:"maxLoanTermMonths"`
	IncomeProof          []string        `json:"incomeProof,omitempty"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	IsActive             bool            `json:"isActive"`
	MinAmountToFinance   *float64        `json:"minAmountToFinance,omitempty"`
	MaxAmountToFinance   *float64        `json:"maxAmountToFinance,omitempty"`
	RestrictionType      RestrictionType `json:"amountToFinanceRestrictionType,omitempty"`
	InterestType         InterestType    `json:"interestType,omitempty"`
	InterestTerm         json.RawMessage `json:"interestTerm,omitempty"`
	RestrictedMotorcycle []int64         `json:"restrictedMotorcycleIds,omitempty"`
	RestrictedBrands     []int64         `json:"restrictedBrandIds,omitempty"`
}

// OfferRestrictions lists the motorcycles and brands an offer is tied to.
type OfferRestrictions struct {
	OfferID       int64   `json:"offerId"`
	MotorcycleIDs []int64 `json:"motorcycleIds"`
	BrandIDs      []int64 `json:"brandIds"`
}
