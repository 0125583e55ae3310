package combiner

import (
	"strconv"
	"strings"

	"credit-evaluation-workers/internal/loan/offers"
	"credit-evaluation-workers/internal/loan/underwriting"
	"credit-evaluation-workers/internal/models"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BankEvaluation is the per-bank record of an evaluation. Keys follow the
// payload consumed by the loan front end.
type BankEvaluation struct {
	BankID              int64                  `json:"bank_id"`
	BankName            string                 `json:"bank_name"`
	BestOffer           *offers.BestOffer      `json:"best_offer"`
	PreAprovado         underwriting.Verdict   `json:"pre_aprovado"`
	AgeEvaluation       underwriting.Verdict   `json:"age_evaluation"`
	ZoneEligibility     underwriting.Verdict   `json:"zone_eligibility"`
	ComportamientoMOP1  underwriting.Verdict   `json:"comportamiento_mop1"`
	PorcentajeIngresos  underwriting.Verdict   `json:"porcentaje_ingresos"`
	ScoreCrediticio     underwriting.Verdict   `json:"score_crediticio"`
	ScoreBCNumeric      *float64               `json:"score_bc_numeric"`
	ConsultasBuro       underwriting.Verdict   `json:"consultas_buro"`
	AntiguedadHistorial underwriting.Verdict   `json:"antiguedad_historial"`
	Quitas              underwriting.Verdict   `json:"quitas"`
	ArraigoDomiciliar   *underwriting.Verdict  `json:"arraigo_domiciliar,omitempty"`
	CapacidadPagoBC     *underwriting.Capacity `json:"capacidad_pago_mensual_bc,omitempty"`

	*underwriting.ExtendedFigures
}

// Verdicts lists the category verdicts of the record keyed by category.
func (b BankEvaluation) Verdicts() map[string]underwriting.Verdict {
	out := map[string]underwriting.Verdict{
		underwriting.CategoryBureauGate:      b.PreAprovado,
		underwriting.CategoryAge:             b.AgeEvaluation,
		CategoryZone:                         b.ZoneEligibility,
		underwriting.CategoryPaymentBehavior: b.ComportamientoMOP1,
		underwriting.CategoryIncomeRatio:     b.PorcentajeIngresos,
		underwriting.CategoryScore:           b.ScoreCrediticio,
		underwriting.CategoryInquiries:       b.ConsultasBuro,
		underwriting.CategoryHistoryAge:      b.AntiguedadHistorial,
		underwriting.CategoryWriteoffs:       b.Quitas,
	}
	if b.ArraigoDomiciliar != nil {
		out[underwriting.CategoryResidential] = *b.ArraigoDomiciliar
	}
	return out
}

const CategoryZone = "zone"

// recordBuilder assembles one BankEvaluation. Every step returns a new
// builder so a half-built record is never shared.
type recordBuilder struct {
	rec BankEvaluation
}

func newRecord(bank models.Bank) recordBuilder {
	name := strings.TrimSpace(bank.Name)
	if name == "" {
		name = "Bank " + strconv.FormatInt(bank.ID, 10)
	} else {
		name = cases.Title(language.Und).String(strings.ToLower(name))
	}
	return recordBuilder{rec: BankEvaluation{
		BankID:          bank.ID,
		BankName:        name,
		ZoneEligibility: underwriting.NA,
	}}
}

func (b recordBuilder) withAssessment(a underwriting.Assessment) recordBuilder {
	b.rec.PreAprovado = a.BureauGate
	b.rec.AgeEvaluation = a.Age
	b.rec.ComportamientoMOP1 = a.PaymentBehavior
	b.rec.PorcentajeIngresos = a.IncomeRatio
	b.rec.ScoreCrediticio = a.Score
	b.rec.ConsultasBuro = a.Inquiries
	b.rec.AntiguedadHistorial = a.HistoryAge
	b.rec.Quitas = a.Writeoffs
	b.rec.ArraigoDomiciliar = a.Residential
	b.rec.CapacidadPagoBC = a.Capacity
	b.rec.ExtendedFigures = a.Figures
	return b
}

func (b recordBuilder) withScore(score *float64) recordBuilder {
	b.rec.ScoreBCNumeric = score
	return b
}

func (b recordBuilder) withZone(v underwriting.Verdict) recordBuilder {
	b.rec.ZoneEligibility = v
	return b
}

func (b recordBuilder) withOffer(offer *offers.BestOffer) recordBuilder {
	b.rec.BestOffer = offer
	return b
}

func (b recordBuilder) build() BankEvaluation {
	return b.rec
}
