package creditdata

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/models"

	"github.com/shopspring/decimal"
)

// RowSource loads the normalized child rows of one bureau report.
type RowSource interface {
	ReportRows(ctx context.Context, reportID int64) (*models.ReportRows, error)
}

// CreditProfile is the flat view of the chosen bureau report.
type CreditProfile struct {
	ReportID            int64           `json:"report_id"`
	IncomeEstimate      *float64        `json:"income_estimate"`
	ScoreBC             *float64        `json:"scoreBC"`
	Inquiries           *int            `json:"consultas_buro"`
	OldestAccountOpened string          `json:"antiguedad_historial"`
	HistoricPayments    []string        `json:"historic_payments"`
	FormaPagoActual     []string        `json:"forma_pago_actual"`
	MontoPagar          []float64       `json:"monto_pagar"`
	Writeoffs           *int            `json:"quita"`
	PaymentCapacity     decimal.Decimal `json:"payment_capacity_by_bc"`
	CapacityComputed    bool            `json:"-"`
}

// WorstPaymentCode is the highest numeric forma_pago_actual across accounts.
func (p *CreditProfile) WorstPaymentCode() *int {
	var worst *int
	for _, code := range p.FormaPagoActual {
		n, err := strconv.Atoi(strings.TrimSpace(code))
		if err != nil {
			continue
		}
		if worst == nil || n > *worst {
			v := n
			worst = &v
		}
	}
	return worst
}

type Extractor struct {
	rows   RowSource
	logger logger.Logger
}

func NewExtractor(rows RowSource, log logger.Logger) *Extractor {
	return &Extractor{
		rows:   rows,
		logger: log.WithFields(map[string]interface{}{"component": "credit_data_extractor"}),
	}
}

// Extract scans reports newest first and builds a profile from the first one
// whose scores, summary and addresses are all present. A nil profile with a
// nil error means no report was complete.
func (e *Extractor) Extract(ctx context.Context, reports []models.BureauReport) (*CreditProfile, []models.AddressRow, error) {
	for _, report := range NewestFirst(reports) {
		rows, err := e.rows.ReportRows(ctx, report.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("load rows for report %d: %w", report.ID, err)
		}
		if !rows.Complete() {
			e.logger.Debug("report incomplete, trying older one", map[string]interface{}{
				"reportId": report.ID,
			})
			continue
		}
		return e.build(report.ID, rows), rows.Addresses, nil
	}

	e.logger.Warn("no report with scores, summary and addresses", map[string]interface{}{
		"reports": len(reports),
	})
	return nil, nil, nil
}

func (e *Extractor) build(reportID int64, rows *models.ReportRows) *CreditProfile {
	p := &CreditProfile{
		ReportID:            reportID,
		Inquiries:           rows.Summary.InquiriesLast6Months,
		OldestAccountOpened: rows.Summary.OldestAccountOpened,
		Writeoffs:           rows.Summary.WriteoffCount,
		HistoricPayments:    []string{},
		FormaPagoActual:     []string{},
		MontoPagar:          []float64{},
	}

	for _, s := range rows.Scores {
		switch s.Code {
		case models.ScoreCodeIncomeEstimate:
			p.IncomeEstimate = s.Value
		case models.ScoreCodeBureauScore:
			p.ScoreBC = s.Value
		}
	}

	for _, acc := range rows.Accounts {
		if acc.FormaPagoActual == "" {
			continue
		}
		p.HistoricPayments = append(p.HistoricPayments, acc.HistoricoPagos)
		p.FormaPagoActual = append(p.FormaPagoActual, acc.FormaPagoActual)
		p.MontoPagar = append(p.MontoPagar, valueOf(acc.MontoPagar))
	}

	if missing(p.IncomeEstimate) || missing(p.ScoreBC) {
		e.logger.Warn("missing income estimate or scoreBC, payment capacity not computed", map[string]interface{}{
			"reportId": reportID,
		})
		return p
	}

	p.PaymentCapacity = PaymentCapacity(*p.IncomeEstimate, valueOf(rows.Summary.TotalRevolvingPayments), valueOf(rows.Summary.TotalFixedPayments))
	p.CapacityComputed = true
	e.logger.Debug("payment capacity calculated", map[string]interface{}{
		"reportId": reportID,
		"capacity": p.PaymentCapacity.String(),
	})
	return p
}

// PaymentCapacity is income (reported in thousands) minus monthly obligations.
func PaymentCapacity(incomeEstimate, revolving, fixed float64) decimal.Decimal {
	income := decimal.NewFromFloat(incomeEstimate).Mul(decimal.NewFromInt(1000))
	return income.Sub(decimal.NewFromFloat(revolving).Add(decimal.NewFromFloat(fixed)))
}

// NewestFirst returns a copy of reports ordered by creation time descending,
// ties broken by the higher id.
func NewestFirst(reports []models.BureauReport) []models.BureauReport {
	sorted := make([]models.BureauReport, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID > sorted[j].ID
	})
	return sorted
}

func missing(v *float64) bool {
	return v == nil || *v == 0
}

func valueOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
