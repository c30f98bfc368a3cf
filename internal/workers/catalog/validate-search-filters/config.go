// internal/workers/catalog/validate-search-filters/config.go
package validatesearchfilters

import "time"

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		DefaultLimit: 10,
		MaxLimit:     50,
	}
}
