package config

import "time"

// RateLimitConfig is the per-caller quota on selection writes (submit, edit,
// resend, delete).  It sits in front of the submission lock and only stops
// scripted floods; the 6s lock and the resend debounce stay in the service.
type RateLimitConfig struct {
	Enabled bool          // RATE_LIMIT_ENABLED
	Limit   int           // writes allowed per window
	Window  time.Duration // RATE_LIMIT_WINDOW
	Scope   string        // "user" or "ip"
	Prefix  string        // Redis key prefix
}

func LoadRateLimitConfig() RateLimitConfig {
	rl := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_WRITES", 20),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		Scope:   envStr("RATE_LIMIT_SCOPE", "user"),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "lottery:rl"),
	}
	if rl.Limit < 1 {
		rl.Limit = 1
	}
	if rl.Window < time.Second {
		rl.Window = time.Second
	}
	return rl
}
