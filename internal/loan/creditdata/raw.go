package creditdata

import (
	"bytes"
	"fmt"
	"strings"

	"credit-evaluation-workers/internal/models"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Payment status labels.
const (
	StatusNoAccounts = "No accounts found"
	StatusCurrent    = "Al corriente"
	StatusLate       = "Atraso 1 a 89 días"
	StatusDelinquent = "Más de 90 días o sin recuperar"
)

// ParseRawReport decodes the opaque raw_query_report payload. An empty or
// null payload yields nil.
func ParseRawReport(data []byte) (*models.RawReport, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var raw models.RawReport
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode raw query report: %w", err)
	}
	return &raw, nil
}

// FirstRawReport returns the first report, in the given order, that carries a
// decodable raw payload. Undecodable payloads are skipped and reported back.
func FirstRawReport(reports []models.BureauReport) (*models.RawReport, []error) {
	var skipped []error
	for _, r := range reports {
		raw, err := ParseRawReport(r.RawQueryReport)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("report %d: %w", r.ID, err))
			continue
		}
		if raw != nil {
			return raw, skipped
		}
	}
	return nil, skipped
}

// BureauScore returns valorScore of the first scoreBuroCredito entry with the
// bureau score code.
func BureauScore(scores []models.RawScore) *float64 {
	for _, s := range scores {
		if s.CodigoScore == models.ScoreCodeBureauScore {
			v := s.ValorScore.Float64()
			return &v
		}
	}
	return nil
}

// PaymentSummary is the applicant-level payment behavior from raw accounts.
type PaymentSummary struct {
	Status            string          `json:"status"`
	WorstCode         int             `json:"worst_code"`
	LastPaymentsTotal decimal.Decimal `json:"last_payments_total"`
	NextPaymentsTotal decimal.Decimal `json:"next_payments_total"`
}

// PaymentStatus reads the most recent MOP code of every account history
// (X and U count as 0) and classifies the worst one.
func PaymentStatus(accounts []models.RawAccount) PaymentSummary {
	if len(accounts) == 0 {
		return PaymentSummary{Status: StatusNoAccounts}
	}

	var s PaymentSummary
	for _, acc := range accounts {
		s.LastPaymentsTotal = s.LastPaymentsTotal.Add(decimal.NewFromFloat(acc.MontoUltimoPago.Float64()))
		s.NextPaymentsTotal = s.NextPaymentsTotal.Add(decimal.NewFromFloat(acc.MontoPagar.Float64()))

		history := strings.NewReplacer("X", "0", "U", "0").Replace(acc.HistoricoPagos)
		if history == "" {
			continue
		}
		if code := history[0]; code >= '0' && code <= '9' && int(code-'0') > s.WorstCode {
			s.WorstCode = int(code - '0')
		}
	}

	switch {
	case s.WorstCode == 1:
		s.Status = StatusCurrent
	case s.WorstCode > 1 && s.WorstCode <= 4:
		s.Status = StatusLate
	default:
		s.Status = StatusDelinquent
	}
	return s
}
