package assignnextadvisor

import (
	"strings"
	"time"
)

type Config struct {
	Timeout           time.Duration
	InputSchema       map[string]interface{}
	FinvaRole         string
	ReuseWindow       time.Duration
	FallbackAdvisorID int64
	HoldingRoles      map[string]int64
	Now               func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Timeout:     15 * time.Second,
		FinvaRole:   "finva_agent",
		ReuseWindow: 180 * 24 * time.Hour,
		HoldingRoles: map[string]int64{
			"sfera": 9,
		},
		Now: time.Now,
	}
}

// holdingRole looks a holding up case-insensitively; config loaders lower-case map keys.
func (c *Config) holdingRole(holding string) (int64, bool) {
	id, ok := c.HoldingRoles[strings.ToLower(strings.TrimSpace(holding))]
	return id, ok
}
