package evaluatesolicitud

import "credit-evaluation-workers/internal/loan/evaluation"

type Input struct {
	SolicitudID int64 `json:"solicitudId"`
}

// Output is the job result. The full envelope travels under "evaluation";
// the flattened fields drive gateway conditions in the process.
type Output struct {
	Evaluation        *evaluation.Result `json:"evaluation"`
	EvaluationID      string             `json:"evaluationId"`
	PaymentStatus     string             `json:"paymentStatus"`
	RecommendReassign bool               `json:"recommendReassign"`
	RecommendedUserID *int64             `json:"recommendedUserId,omitempty"`
	DeniedBanks       []string           `json:"deniedBanks,omitempty"`
	ReassignReason    string             `json:"reassignReason,omitempty"`
}
