package notifyreassignment

import "time"

type Config struct {
	Timeout      time.Duration
	InputSchema  map[string]interface{}
	EmailEnabled bool
	SMSEnabled   bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      20 * time.Second,
		EmailEnabled: true,
		SMSEnabled:   false,
	}
}
