package assignnextadvisor

type Input struct {
	Role     string `json:"role,omitempty"`
	ClientID *int64 `json:"clientId,omitempty"`
	StoreID  *int64 `json:"storeId,omitempty"`
	Holding  string `json:"holding,omitempty"`
}

type Output struct {
	AdvisorID    int64  `json:"advisorId"`
	AdvisorName  string `json:"advisorName"`
	AdvisorEmail string `json:"advisorEmail,omitempty"`
	RoleID       int64  `json:"roleId"`
	Reused       bool   `json:"reused"`
	Fallback     bool   `json:"fallback"`
}
