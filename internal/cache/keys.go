// Package cache centralises cache key construction and TTL bucket handling
// for the market data layer.
package cache

import (
	"strings"
	"time"

	"marketfeed/internal/config"
)

// Namespace is the cache key prefix for the application.
const Namespace = "marketfeed"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 15*time.Second),
		Medium: durationOrDefault(cfg.Medium, 30*time.Second),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Duration returns the configured duration for the given TTL class.
func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

// PriceTTL returns the short-lived TTL applied to raw price payloads.
func PriceTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// QuoteTTL returns the TTL for quote objects held by the request manager.
func QuoteTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLMedium)
}

// CandlesTTL returns the TTL for aggregate bar payloads.
func CandlesTTL(ttl TTLSet) time.Duration {
	return ttl.Duration(TTLShort)
}

// TokenListTTL returns the TTL for token directory payloads.
func TokenListTTL() time.Duration {
	return 24 * time.Hour
}

// FormatKey builds a namespaced cache key from its parts, skipping blanks.
func FormatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}
