package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// PartnerLedgerBestEffort lets customer/supplier creation succeed when the partner
// ledger cannot be provisioned. The ledger is then provisioned on the partner's first invoice.
// Off by default: a partner without a ledger cannot be posted against.
//
// Set via env:
// - PARTNER_LEDGER_BEST_EFFORT=true
func PartnerLedgerBestEffort() bool {
	return envBool("PARTNER_LEDGER_BEST_EFFORT")
}

// DefaultPhoneRegion is the ISO region used to parse partner phone numbers without a country prefix.
func DefaultPhoneRegion() string {
	v := strings.ToUpper(strings.TrimSpace(os.Getenv("DEFAULT_PHONE_REGION")))
	if v == "" {
		return "NP"
	}
	return v
}

// SkipMigrations disables AutoMigrate on server startup (run cmd/seed-chart as a job instead).
func SkipMigrations() bool {
	return envBool("SKIP_MIGRATIONS")
}

// RateLimit reads the per-IP request limit.
//
// Env:
// - RATE_LIMIT_ENABLED=true
// - RATE_LIMIT_MAX_REQUESTS=600
// - RATE_LIMIT_WINDOW_SECONDS=60
func RateLimit() (enabled bool, limit int64, window time.Duration) {
	limit, windowSec := int64(600), int64(60)
	if v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")), 10, 64); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")), 10, 64); err == nil && v > 0 {
		windowSec = v
	}
	return envBool("RATE_LIMIT_ENABLED"), limit, time.Duration(windowSec) * time.Second
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
