package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable. Durations are derived from integer env vars in
// the unit named by the variable.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	JWTSecret  string // secret used to sign access tokens
	AdminEmail string // account granted the admin marker

	AccessTTL   time.Duration // access token lifetime
	SessionTTL  time.Duration // non-remembered session lifetime
	RememberTTL time.Duration // remembered session lifetime
	BcryptCost  int           // bcrypt cost for password hashing

	LockoutThreshold int           // consecutive failures before lock
	LockoutDuration  time.Duration // how long a lock holds

	ResetTokenTTL  time.Duration // password-reset token lifetime
	VerifyTokenTTL time.Duration // email-verification token lifetime

	RotationLimit int           // rotations before a family is force-revoked
	FamilyMaxAge  time.Duration // absolute family age ceiling

	SweepGrace     time.Duration // kept past expiry before deletion
	SweepRetention time.Duration // revoked rows kept for this long
	SweepMinEvery  time.Duration // minimum gap between sweep passes

	CookieSecure bool // Secure attribute on auth cookies

	OAuthGitHubID     string
	OAuthGitHubSecret string
	OAuthGoogleID     string
	OAuthGoogleSecret string
	OAuthRedirectURL  string
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message. Tunables fall back to
// conservative defaults.
func Load() Config {
	return Config{
		Env:        must("APP_ENV"),
		Port:       must("APP_PORT"),
		DBUser:     must("DB_USER"),
		DBPass:     os.Getenv("DB_PASS"),
		DBHost:     must("DB_HOST"),
		DBPort:     must("DB_PORT"),
		DBName:     must("DB_NAME"),
		JWTSecret:  must("JWT_SECRET"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),

		AccessTTL:   time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 15)) * time.Minute,
		SessionTTL:  time.Duration(envInt("SESSION_TTL_HOURS", 12)) * time.Hour,
		RememberTTL: time.Duration(envInt("REMEMBER_TTL_DAYS", 30)) * 24 * time.Hour,
		BcryptCost:  envInt("BCRYPT_COST", 12),

		LockoutThreshold: envInt("LOCKOUT_THRESHOLD", 5),
		LockoutDuration:  time.Duration(envInt("LOCKOUT_MINUTES", 15)) * time.Minute,

		ResetTokenTTL:  time.Duration(envInt("RESET_TOKEN_TTL_MIN", 60)) * time.Minute,
		VerifyTokenTTL: time.Duration(envInt("VERIFY_TOKEN_TTL_MIN", 60*24)) * time.Minute,

		RotationLimit: envInt("ROTATION_LIMIT", 500),
		FamilyMaxAge:  time.Duration(envInt("FAMILY_MAX_AGE_DAYS", 90)) * 24 * time.Hour,

		SweepGrace:     time.Duration(envInt("SWEEP_GRACE_HOURS", 24)) * time.Hour,
		SweepRetention: time.Duration(envInt("SWEEP_RETENTION_DAYS", 7)) * 24 * time.Hour,
		SweepMinEvery:  envDur("SWEEP_MIN_EVERY", 5*time.Minute),

		CookieSecure: envBool("COOKIE_SECURE", os.Getenv("APP_ENV") == "prod"),

		OAuthGitHubID:     os.Getenv("OAUTH_GITHUB_CLIENT_ID"),
		OAuthGitHubSecret: os.Getenv("OAUTH_GITHUB_CLIENT_SECRET"),
		OAuthGoogleID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		OAuthGoogleSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		OAuthRedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
