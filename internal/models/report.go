package models

import (
	"encoding/json"
	"time"
)

// Score codes reported by the bureau.
const (
	ScoreCodeIncomeEstimate = "016"
	ScoreCodeBureauScore    = "007"
)

// BureauReport is one credit-bureau pull for a client.
type BureauReport struct {
	ID             int64           `json:"id"`
	ClienteID      int64           `json:"clienteId"`
	KibanID        string          `json:"kibanId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	RawQueryReport json.RawMessage `json:"rawQueryReport,omitempty"`
}

type ScoreRow struct {
	ReportID int64    `json:"reportId"`
	Code     string   `json:"codigoScore"`
	Value    *float64 `json:"valorScore,omitempty"`
}

// SummaryRow holds the aggregate counters of a report.
type SummaryRow struct {
	ReportID               int64    `json:"reportId"`
	InquiriesLast6Months   *int     `json:"numeroSolicitudesUltimos6Meses,omitempty"`
	OldestAccountOpened    string   `json:"fechaAperturaCuentaMasAntigua,omitempty"`
	WriteoffCount          *int     `json:"numeroMop97,omitempty"`
	TotalRevolvingPayments *float64 `json:"totalPagosRevolventes,omitempty"`
	TotalFixedPayments     *float64 `json:"totalPagosFijos,omitempty"`
}

type AccountRow struct {
	ReportID        int64    `json:"reportId"`
	MontoPagar      *float64 `json:"montoPagar,omitempty"`
	MontoUltimoPago *float64 `json:"montoUltimoPago,omitempty"`
	FormaPagoActual string   `json:"formaPagoActual,omitempty"`
	HistoricoPagos  string   `json:"historicoPagos,omitempty"`
	NumeroMOP97     *int     `json:"numeroMop97,omitempty"`
}

type AddressRow struct {
	ReportID         int64  `json:"reportId"`
	Direccion        string `json:"direccion,omitempty"`
	ColoniaPoblacion string `json:"coloniaPoblacion,omitempty"`
	Ciudad           string `json:"ciudad,omitempty"`
	Estado           string `json:"estado,omitempty"`
	CP               string `json:"cp,omitempty"`
	FechaResidencia  string `json:"fechaResidencia,omitempty"`
}

// ReportRows groups the normalized child rows of one report.
type ReportRows struct {
	Scores    []ScoreRow
	Summary   *SummaryRow
	Accounts  []AccountRow
	Addresses []AddressRow
}

// Complete reports whether the rows are enough to build a credit profile.
func (r *ReportRows) Complete() bool {
	return r != nil && len(r.Scores) > 0 && r.Summary != nil && len(r.Addresses) > 0
}
