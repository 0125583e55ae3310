package models

import "time"

// Solicitud is a loan application. Evaluation only ever reads it.
type Solicitud struct {
	ID                    int64     `json:"id"`
	ClienteID             *int64    `json:"clienteId,omitempty"`
	ReportID              *int64    `json:"reportId,omitempty"`
	FinvaUserID           *int64    `json:"finvaUserId,omitempty"`
	BrandMotorcycle       string    `json:"brandMotorcycle,omitempty"`
	InvoiceValue          *float64  `json:"invoiceMotorcycleValue,omitempty"`
	DownPaymentPercentage *float64  `json:"percentageDownPayment,omitempty"`
	FinanceTermMonths     string    `json:"financeTermMonths,omitempty"`
	IncomeSourceType      []string  `json:"incomeSourceType,omitempty"`
	IncomeProof           []string  `json:"incomeProof,omitempty"`
	MonthlyIncome         *float64  `json:"monthlyIncome,omitempty"`
	DebtPayFromIncome     *float64  `json:"debtPayFromIncome,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
}

// Client is the applicant behind a solicitud.
type Client struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	FirstLastName string     `json:"firstLastName,omitempty"`
	BirthDate     *time.Time `json:"birthDate,omitempty"`
	Estado        string     `json:"estado,omitempty"`
	Ciudad        string     `json:"ciudad,omitempty"`
	ZipCode       string     `json:"zipCode,omitempty"`
}

// Location is the client's residence as used by zone-limit lookups.
func (c *Client) Location() Location {
	return Location{Estado: c.Estado, Ciudad: c.Ciudad, ZipCode: c.ZipCode}
}

type Location struct {
	Estado  string `json:"estado"`
	Ciudad  string `json:"ciudad"`
	ZipCode string `json:"zipCode"`
}
