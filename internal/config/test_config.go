package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      5 * time.Second,
			UserAgent:    "andstatus-test/1.0",
			MaxRedirects: 5,
		},
		Queue: QueueConfig{
			Path:           "", // callers point this at a temp file
			MaxRetries:     3,
			PollInterval:   50 * time.Millisecond,
			CommandTimeout: 5 * time.Second,
			MinBackoff:     10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
		},
		Log: LogConfig{Level: "debug"},
	}
}
