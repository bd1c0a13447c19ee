package license

import "time"

// VerifyInterval is how often the running client re-checks the licence.
// It is fixed; there is no configuration knob for it.
const VerifyInterval = 5 * time.Minute

// Config holds the client-side settings for talking to the licence service.
type Config struct {
	ServiceURL string        // Base URL of the licence service
	Timeout    time.Duration // HTTP client timeout
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		ServiceURL: "http://127.0.0.1:8890",
		Timeout:    15 * time.Second,
	}
}

// EffectiveTimeout exposes a safe timeout (never <2s).
func (c *Config) EffectiveTimeout() time.Duration {
	if c.Timeout < 2*time.Second {
		return 2 * time.Second
	}
	return c.Timeout
}
