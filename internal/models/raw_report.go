package models

import (
	"bytes"
	"strconv"
	"strings"
)

// RawReport is the subset of the bureau's raw_query_report payload the engine reads.
type RawReport struct {
	Response RawResponse `json:"response"`
}

type RawResponse struct {
	Cuentas          []RawAccount `json:"cuentas"`
	ScoreBuroCredito []RawScore   `json:"scoreBuroCredito"`
}

type RawAccount struct {
	MontoPagar        Amount `json:"montoPagar"`
	MontoUltimoPago   Amount `json:"montoUltimoPago"`
	HistoricoPagos    string `json:"historicoPagos"`
	FormaPagoActual   string `json:"formaPagoActual"`
	TipoCuenta        string `json:"tipoCuenta"`
	CreditoMaximo     Amount `json:"creditoMaximo"`
	SaldoActual       Amount `json:"saldoActual"`
	FechaCierreCuenta string `json:"fechaCierreCuenta"`
}

type RawScore struct {
	CodigoScore string `json:"codigoScore"`
	ValorScore  Amount `json:"valorScore"`
}

// Amount decodes bureau numbers that arrive either as JSON numbers or as
// strings. Anything unparseable decodes to zero.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSuffix(s, "+")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*a = 0
		return nil
	}
	*a = Amount(v)
	return nil
}

func (a Amount) Float64() float64 {
	return float64(a)
}
