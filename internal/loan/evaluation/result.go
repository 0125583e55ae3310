package evaluation

import (
	"time"

	"credit-evaluation-workers/internal/loan/combiner"
	"credit-evaluation-workers/internal/loan/reassignment"

	"github.com/shopspring/decimal"
)

// Result is the evaluation envelope returned to the caller.
type Result struct {
	EvaluationID            string                    `json:"evaluation_id"`
	SolicitudID             int64                     `json:"solicitud_id"`
	EvaluatedAt             time.Time                 `json:"evaluated_at"`
	Success                 bool                      `json:"success"`
	Banks                   []combiner.BankEvaluation `json:"banks"`
	IncomeEstimate          Figure                    `json:"income_estimate"`
	PaymentCapacityByBC     Figure                    `json:"payment_capacity_by_bc"`
	PaymentCapacityByClient Figure                    `json:"payment_capacity_by_client"`
	IncomeProof             *string                   `json:"income_proof"`
	PaymentStatus           string                    `json:"payment_status"`
	AutoFinancing           *reassignment.Decision    `json:"auto_financing_assignment"`
}

// Figure is an applicant-level amount. It encodes as "N/A" when the source
// data does not exist and as null when the data exists but has no value.
type Figure struct {
	Available bool
	Value     *decimal.Decimal
}

func notAvailable() Figure { return Figure{} }

func figureOf(v *decimal.Decimal) Figure { return Figure{Available: true, Value: v} }

func (f Figure) MarshalJSON() ([]byte, error) {
	if !f.Available {
		return []byte(`"N/A"`), nil
	}
	if f.Value == nil {
		return []byte("null"), nil
	}
	return []byte(f.Value.String()), nil
}
