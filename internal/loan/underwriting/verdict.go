package underwriting

import (
	"encoding/json"
	"fmt"
)

// Kind is the closed set of outcomes a rule can produce.
type Kind int

const (
	NotApplicable Kind = iota
	Approved
	Rejected
	UnderReview
	InsufficientInput
)

func (k Kind) String() string {
	switch k {
	case Approved:
		return "approved"
	case Rejected:
		return "rejected"
	case UnderReview:
		return "under_review"
	case InsufficientInput:
		return "insufficient_input"
	default:
		return "not_applicable"
	}
}

// Legacy strings stored in evaluation payloads and policy documents.
const (
	LabelApproved      = "Aprobado"
	LabelRejected      = "Rechazado"
	LabelUnderReview   = "En Estudio"
	LabelNotApplicable = "N/A"
)

// Reasons attached to InsufficientInput verdicts. Some are user-facing prompts.
const (
	ReasonNoScore      = "scoreBC not available"
	ReasonNoReport     = "report not available"
	ReasonNoIncome     = "Agregar ingreso"
	ReasonNoIncomeType = "Agregar tipo de ingreso"
)

// legacyReasons are the only reasons written verbatim into payloads. Any
// other reason renders as N/A.
var legacyReasons = map[string]bool{
	ReasonNoScore:      true,
	ReasonNoIncome:     true,
	ReasonNoIncomeType: true,
}

// Verdict is the result of one underwriting rule for one bank.
// The zero value is NotApplicable.
type Verdict struct {
	kind   Kind
	reason string
}

var (
	Aprobado  = Verdict{kind: Approved}
	Rechazado = Verdict{kind: Rejected}
	EnEstudio = Verdict{kind: UnderReview}
	NA        = Verdict{kind: NotApplicable}
)

// Insufficient marks a rule that could not run because an input was missing.
func Insufficient(reason string) Verdict {
	return Verdict{kind: InsufficientInput, reason: reason}
}

func (v Verdict) Kind() Kind { return v.kind }

func (v Verdict) Reason() string { return v.reason }

func (v Verdict) IsRejected() bool { return v.kind == Rejected }

// String returns the legacy label.
func (v Verdict) String() string {
	switch v.kind {
	case Approved:
		return LabelApproved
	case Rejected:
		return LabelRejected
	case UnderReview:
		return LabelUnderReview
	case InsufficientInput:
		if legacyReasons[v.reason] {
			return v.reason
		}
		return LabelNotApplicable
	default:
		return LabelNotApplicable
	}
}

// ParseVerdict maps a legacy label back to a Verdict. Anything outside the
// four labels is read as an InsufficientInput reason.
func ParseVerdict(s string) Verdict {
	switch s {
	case LabelApproved:
		return Aprobado
	case LabelRejected:
		return Rechazado
	case LabelUnderReview:
		return EnEstudio
	case LabelNotApplicable, "":
		return NA
	default:
		return Insufficient(s)
	}
}

func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

func (v *Verdict) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("verdict must be a string: %w", err)
	}
	*v = ParseVerdict(s)
	return nil
}
