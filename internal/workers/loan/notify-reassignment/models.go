package notifyreassignment

type Input struct {
	SolicitudID       int64    `json:"solicitudId"`
	RecommendedUserID int64    `json:"recommendedUserId"`
	DeniedBanks       []string `json:"deniedBanks"`
	Reason            string   `json:"reason"`
}

type Output struct {
	EmailSent  bool     `json:"emailSent"`
	SMSSent    bool     `json:"smsSent"`
	MessageIDs []string `json:"messageIds"`
}
