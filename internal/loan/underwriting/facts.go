package underwriting

import (
	"time"

	"credit-evaluation-workers/internal/models"

	"github.com/shopspring/decimal"
)

// Facts are the bank-agnostic inputs every rule reads. Nil pointers mean the
// bureau or the applicant did not provide the value.
type Facts struct {
	ScoreBC             *float64
	Inquiries           *int
	OldestAccountOpened string
	Writeoffs           *int
	WorstPaymentCode    *int
	BirthDate           *time.Time
	IncomeType          string
	IncomeEstimate      *float64
	SummedPayments      decimal.Decimal
	HasProfile          bool
	HasReport           bool
	HasAddresses        bool
	Figures             ExtendedFigures
}

// ExtendedFigures are the account aggregates some banks ask for.
type ExtendedFigures struct {
	CuentasQuebranto int             `json:"cuentas_quebranto"`
	MontoMaximoCC    decimal.Decimal `json:"monto_maximo_cc"`
	SaldoActualCA    decimal.Decimal `json:"saldo_actual_ca"`
}

// ComputeExtendedFigures aggregates raw bureau accounts: accounts written off
// (forma de pago 97), the highest revolving credit limit and the balance of
// accounts that are still open.
func ComputeExtendedFigures(accounts []models.RawAccount) ExtendedFigures {
	var f ExtendedFigures
	for _, acc := range accounts {
		if acc.FormaPagoActual == "97" {
			f.CuentasQuebranto++
		}
		if acc.TipoCuenta == "R" {
			limit := decimal.NewFromFloat(acc.CreditoMaximo.Float64())
			if limit.GreaterThan(f.MontoMaximoCC) {
				f.MontoMaximoCC = limit
			}
		}
		if acc.FechaCierreCuenta == "" {
			f.SaldoActualCA = f.SaldoActualCA.Add(decimal.NewFromFloat(acc.SaldoActual.Float64()))
		}
	}
	return f
}

// SumPayments adds montoPagar over raw bureau accounts.
func SumPayments(accounts []models.RawAccount) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range accounts {
		total = total.Add(decimal.NewFromFloat(acc.MontoPagar.Float64()))
	}
	return total
}
