package combiner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"credit-evaluation-workers/internal/common/logger"
	"credit-evaluation-workers/internal/loan/creditdata"
	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/loan/underwriting"
	"credit-evaluation-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes & Helpers
// ==========================

var fixedNow = time.Date(2025, time.June, 15, 10, 0, 0, 0, time.UTC)

type fakeZones struct {
	mu       sync.Mutex
	verdicts map[int64]underwriting.Verdict
	errs     map[int64]error
	seen     []models.Location
}

func (f *fakeZones) Eligibility(ctx context.Context, bank models.Bank, location models.Location) (underwriting.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, location)
	if err, ok := f.errs[bank.ID]; ok {
		return underwriting.NA, err
	}
	if v, ok := f.verdicts[bank.ID]; ok {
		return v, nil
	}
	return underwriting.NA, nil
}

func f64(v float64) *float64 { return &v }
func i(v int) *int           { return &v }

func newTestCombiner(t *testing.T, zones ZoneEligibility) *Combiner {
	engine := underwriting.NewEngine(
		underwriting.StaticPolicy{P: underwriting.DefaultPolicy()},
		underwriting.WithClock(func() time.Time { return fixedNow }),
	)
	return New(engine, zones, 2, logger.NewTestLogger(t))
}

func catalog() []models.Bank {
	return []models.Bank{
		{ID: 1, Name: "BBVA"},
		{ID: 3, Name: "HEY"},
		{ID: 7, Name: "ZONA AUTOESTRENA"},
		{ID: 20, Name: "SFERA"},
	}
}

func fullInput() Input {
	birth := fixedNow.AddDate(-35, 0, 0)
	return Input{
		Banks: catalog(),
		BestOffers: map[int64]offers.BestOffer{
			1: {OfferID: 10, AvgInterestRate: 12.0},
		},
		Profile: &creditdata.CreditProfile{
			ReportID:            5,
			IncomeEstimate:      f64(25),
			ScoreBC:             f64(700),
			Inquiries:           i(1),
			OldestAccountOpened: "2015-01-10",
			FormaPagoActual:     []string{"01"},
			Writeoffs:           i(0),
		},
		Addresses: []models.AddressRow{{ReportID: 5, Ciudad: "Monterrey"}},
		Raw: &models.RawReport{Response: models.RawResponse{
			Cuentas: []models.RawAccount{
				{MontoPagar: 1200, TipoCuenta: "R", CreditoMaximo: 30000, SaldoActual: 5000, FormaPagoActual: "01"},
				{MontoPagar: 800, TipoCuenta: "I", SaldoActual: 2000, FechaCierreCuenta: "2020-01-01", FormaPagoActual: "97"},
			},
		}},
		HasReport: true,
		Client:    &models.Client{ID: 9, BirthDate: &birth, Estado: "NL", Ciudad: "Monterrey", ZipCode: "64000"},
		Solicitud: &models.Solicitud{ID: 42},
	}
}

func byBank(records []BankEvaluation) map[int64]BankEvaluation {
	out := make(map[int64]BankEvaluation, len(records))
	for _, r := range records {
		out[r.BankID] = r
	}
	return out
}

// ==========================
// Combine
// ==========================

func TestCombine_OneRecordPerCatalogBank(t *testing.T) {
	records, err := newTestCombiner(t, nil).Combine(context.Background(), fullInput())
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, []int64{1, 3, 7, 20}, []int64{records[0].BankID, records[1].BankID, records[2].BankID, records[3].BankID})

	banks := byBank(records)
	require.NotNil(t, banks[1].BestOffer)
	assert.Equal(t, int64(10), banks[1].BestOffer.OfferID)
	assert.Nil(t, banks[3].BestOffer)
	assert.Nil(t, banks[20].BestOffer)
}

func TestCombine_Verdicts(t *testing.T) {
	records, err := newTestCombiner(t, nil).Combine(context.Background(), fullInput())
	require.NoError(t, err)
	banks := byBank(records)

	bbva := banks[1]
	assert.Equal(t, "Bbva", bbva.BankName)
	assert.Equal(t, underwriting.Aprobado, bbva.ScoreCrediticio)
	assert.Equal(t, underwriting.NA, bbva.PreAprovado)
	assert.Equal(t, underwriting.NA, bbva.ZoneEligibility)
	assert.Equal(t, underwriting.Aprobado, bbva.Quitas)
	assert.Equal(t, 700.0, *bbva.ScoreBCNumeric)
	require.NotNil(t, bbva.ArraigoDomiciliar)
	require.NotNil(t, bbva.CapacidadPagoBC)
	assert.Equal(t, underwriting.NA, bbva.CapacidadPagoBC.Verdict)
	assert.Nil(t, bbva.ExtendedFigures)

	zona := banks[7]
	assert.Equal(t, "Zona Autoestrena", zona.BankName)
	assert.Equal(t, underwriting.Aprobado, zona.PreAprovado)

	hey := banks[3]
	assert.Equal(t, underwriting.Insufficient(underwriting.ReasonNoIncomeType), hey.CapacidadPagoBC.Verdict)

	sfera := banks[20]
	assert.Equal(t, underwriting.EnEstudio, sfera.ScoreCrediticio)
	require.NotNil(t, sfera.ExtendedFigures)
	assert.Equal(t, 1, sfera.CuentasQuebranto)
	assert.Equal(t, "30000", sfera.MontoMaximoCC.String())
	assert.Equal(t, "5000", sfera.SaldoActualCA.String())
	require.NotNil(t, sfera.CapacidadPagoBC.Amount)
	assert.Equal(t, "2000", sfera.CapacidadPagoBC.Amount.String())
}

func TestCombine_WithoutProfile(t *testing.T) {
	in := fullInput()
	in.Profile = nil
	in.Addresses = nil
	in.HasReport = false
	in.Raw = &models.RawReport{Response: models.RawResponse{
		ScoreBuroCredito: []models.RawScore{{CodigoScore: "007", ValorScore: 690}},
	}}

	records, err := newTestCombiner(t, nil).Combine(context.Background(), in)
	require.NoError(t, err)
	banks := byBank(records)

	bbva := banks[1]
	assert.Equal(t, 690.0, *bbva.ScoreBCNumeric)
	assert.Equal(t, underwriting.Aprobado, bbva.ScoreCrediticio)
	assert.Equal(t, underwriting.NA, bbva.ConsultasBuro)
	assert.Equal(t, underwriting.NA, bbva.ComportamientoMOP1)
	assert.Nil(t, bbva.CapacidadPagoBC)
	assert.Nil(t, bbva.ArraigoDomiciliar)
	assert.Equal(t, underwriting.Insufficient(underwriting.ReasonNoReport), banks[7].PreAprovado)
}

func TestCombine_EmptyInput(t *testing.T) {
	records, err := newTestCombiner(t, nil).Combine(context.Background(), Input{Banks: catalog()})
	require.NoError(t, err)

	require.Len(t, records, 4)
	for _, r := range records {
		assert.Equal(t, underwriting.Insufficient(underwriting.ReasonNoScore), r.ScoreCrediticio)
		assert.Equal(t, underwriting.NA, r.AgeEvaluation)
		assert.Nil(t, r.ScoreBCNumeric)
	}
}

func TestCombine_ZoneLookups(t *testing.T) {
	zones := &fakeZones{
		verdicts: map[int64]underwriting.Verdict{3: underwriting.Rechazado},
		errs:     map[int64]error{1: errors.New("zone service down")},
	}

	records, err := newTestCombiner(t, zones).Combine(context.Background(), fullInput())
	require.NoError(t, err)
	banks := byBank(records)

	assert.Equal(t, underwriting.NA, banks[1].ZoneEligibility)
	assert.Equal(t, underwriting.Rechazado, banks[3].ZoneEligibility)
	require.Len(t, zones.seen, 4)
	assert.Equal(t, models.Location{Estado: "NL", Ciudad: "Monterrey", ZipCode: "64000"}, zones.seen[0])
}

func TestCombine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestCombiner(t, nil).Combine(ctx, fullInput())
	assert.ErrorIs(t, err, context.Canceled)
}

// ==========================
// Record & Builder
// ==========================

func TestBuilder_StepsDoNotMutate(t *testing.T) {
	base := newRecord(models.Bank{ID: 1, Name: "BBVA"})
	rejected := base.withZone(underwriting.Rechazado)

	assert.Equal(t, underwriting.NA, base.build().ZoneEligibility)
	assert.Equal(t, underwriting.Rechazado, rejected.build().ZoneEligibility)
}

func TestNewRecord_NamelessBank(t *testing.T) {
	assert.Equal(t, "Bank 12", newRecord(models.Bank{ID: 12}).build().BankName)
}

func TestBankEvaluation_JSON(t *testing.T) {
	records, err := newTestCombiner(t, nil).Combine(context.Background(), fullInput())
	require.NoError(t, err)
	banks := byBank(records)

	data, err := json.Marshal(banks[1])
	require.NoError(t, err)
	var bbva map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &bbva))

	assert.Equal(t, "Bbva", bbva["bank_name"])
	assert.Equal(t, "Aprobado", bbva["score_crediticio"])
	assert.Equal(t, "N/A", bbva["zone_eligibility"])
	assert.Equal(t, "N/A", bbva["capacidad_pago_mensual_bc"])
	assert.NotContains(t, bbva, "monto_maximo_cc")
	offer := bbva["best_offer"].(map[string]interface{})
	assert.Equal(t, 12.0, offer["avg_interest_rate"])

	data, err = json.Marshal(banks[20])
	require.NoError(t, err)
	var sfera map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &sfera))

	assert.Nil(t, sfera["best_offer"])
	assert.Equal(t, "2000", sfera["capacidad_pago_mensual_bc"])
	assert.Equal(t, 1.0, sfera["cuentas_quebranto"])
	assert.Contains(t, sfera, "saldo_actual_ca")
}

func TestBuildFacts(t *testing.T) {
	in := fullInput()
	in.Solicitud.IncomeSourceType = []string{"PFAE", "ASALARIADO"}

	f := BuildFacts(in)

	assert.True(t, f.HasProfile)
	assert.True(t, f.HasReport)
	assert.True(t, f.HasAddresses)
	assert.Equal(t, "PFAE", f.IncomeType)
	assert.Equal(t, 1, *f.WorstPaymentCode)
	assert.Equal(t, "2000", f.SummedPayments.String())
	assert.Equal(t, 700.0, *f.ScoreBC)
}

func TestBuildFacts_IncomeTypeUsesFirstSource(t *testing.T) {
	in := fullInput()

	in.Solicitud.IncomeSourceType = []string{"PF", "PFAE"}
	assert.Equal(t, "PF", BuildFacts(in).IncomeType)

	in.Solicitud.IncomeSourceType = nil
	assert.Empty(t, BuildFacts(in).IncomeType)
}
