package config

import (
	"os"
	"time"

	"github.com/mikefreno/freno-dev-sub000/internal/ratelimit"
)

// RateLimitConfig carries the per-action ceilings and windows plus the key
// prefix shared by all buckets.
type RateLimitConfig struct {
	Enabled bool
	Prefix  string
	Rules   map[string]ratelimit.Rule
}

// LoadRateLimitConfig reads per-action rate-limit rules from the
// environment. Login and the email flows are keyed per email+address pair;
// registration is coarser, keyed by address alone, which is reflected in
// its tighter default ceiling.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
		Rules: map[string]ratelimit.Rule{
			ratelimit.ActionLogin: {
				Limit:  envInt("RATE_LIMIT_LOGIN_MAX", 10),
				Window: envDur("RATE_LIMIT_LOGIN_WINDOW", 10*time.Minute),
			},
			ratelimit.ActionRegister: {
				Limit:  envInt("RATE_LIMIT_REGISTER_MAX", 5),
				Window: envDur("RATE_LIMIT_REGISTER_WINDOW", time.Hour),
			},
			ratelimit.ActionResetRequest: {
				Limit:  envInt("RATE_LIMIT_RESET_MAX", 3),
				Window: envDur("RATE_LIMIT_RESET_WINDOW", time.Hour),
			},
			ratelimit.ActionVerifyResend: {
				Limit:  envInt("RATE_LIMIT_VERIFY_MAX", 3),
				Window: envDur("RATE_LIMIT_VERIFY_WINDOW", time.Hour),
			},
		},
	}
	for action, rule := range cfg.Rules {
		if rule.Limit < 1 {
			rule.Limit = 1
		}
		if rule.Window <= 0 {
			rule.Window = time.Minute
		}
		cfg.Rules[action] = rule
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
