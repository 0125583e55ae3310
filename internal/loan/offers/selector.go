package offers

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"credit-evaluation-workers/internal/models"
)

var ErrInvalidInterestTerm = errors.New("invalid interest term table")

// BestOffer is the cheapest offer of one bank.
type BestOffer struct {
	OfferID         int64    `json:"offer_id"`
	AvgInterestRate float64  `json:"avg_interest_rate"`
	OpeningFee      *float64 `json:"opening_fee"`
}

// EffectiveRate resolves the rate that applies to loanTermMonths. Term-indexed
// offers use the exact term, else the nearest one (lowest term on ties).
// When the term table cannot be read the flat average is returned together
// with an ErrInvalidInterestTerm error.
func EffectiveRate(offer models.FinancingOffer, loanTermMonths int) (float64, error) {
	if offer.InterestType != models.InterestPerTerm || len(offer.InterestTerm) == 0 || loanTermMonths == 0 {
		return averageRate(offer), nil
	}

	rate, err := termRate(offer.InterestTerm, loanTermMonths)
	if err != nil {
		return averageRate(offer), fmt.Errorf("%w: offer %d: %v", ErrInvalidInterestTerm, offer.ID, err)
	}
	return rate, nil
}

func termRate(raw json.RawMessage, loanTermMonths int) (float64, error) {
	var table map[string]interface{}
	if err := json.Unmarshal(raw, &table); err != nil {
		return 0, err
	}
	if len(table) == 0 {
		return 0, errors.New("empty table")
	}

	if v, ok := table[strconv.Itoa(loanTermMonths)]; ok {
		return toFloat(v)
	}

	terms := make([]int, 0, len(table))
	byTerm := make(map[int]string, len(table))
	for key := range table {
		n, err := strconv.Atoi(key)
		if err != nil {
			return 0, fmt.Errorf("term %q is not a number", key)
		}
		terms = append(terms, n)
		byTerm[n] = key
	}
	sort.Ints(terms)

	closest := terms[0]
	for _, t := range terms[1:] {
		if abs(t-loanTermMonths) < abs(closest-loanTermMonths) {
			closest = t
		}
	}
	return toFloat(table[byTerm[closest]])
}

func toFloat(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("rate %v is not a number", v)
	}
}

func averageRate(offer models.FinancingOffer) float64 {
	return (offer.LowestInterestRate + offer.HighestInterestRate) / 2
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// SelectBest keeps the strictly cheapest offer per bank; on equal rates the
// first offer seen stays. Unreadable term tables are returned as warnings.
func SelectBest(valid []models.FinancingOffer, loanTermMonths int) (map[int64]BestOffer, []error) {
	best := make(map[int64]BestOffer)
	var warnings []error

	for _, offer := range valid {
		rate, err := EffectiveRate(offer, loanTermMonths)
		if err != nil {
			warnings = append(warnings, err)
		}
		current, seen := best[offer.BankID]
		if !seen || rate < current.AvgInterestRate {
			best[offer.BankID] = BestOffer{
				OfferID:         offer.ID,
				AvgInterestRate: rate,
				OpeningFee:      offer.OpeningFee,
			}
		}
	}
	return best, warnings
}
