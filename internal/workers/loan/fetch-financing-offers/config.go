package fetchfinancingoffers

import "time"

type Config struct {
	Timeout     time.Duration
	InputSchema map[string]interface{}
	Now         func() time.Time
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		Now:     time.Now,
	}
}
