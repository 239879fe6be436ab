package bands

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseQuantileLevel parses a quantile level from either p-notation (p2.5, p97.5)
// or decimal notation (0.025, 0.975).
//
// Examples:
//   - "p50"   → 0.50
//   - "p2.5"  → 0.025
//   - "0.975" → 0.975
//
// Levels must lie strictly between 0 and 1.
func ParseQuantileLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantile level")
	}

	if strings.HasPrefix(strings.ToLower(s), "p") {
		percentile, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid p-notation %q: %w", s, err)
		}
		if !(percentile > 0 && percentile < 100) {
			return 0, fmt.Errorf("percentile %v out of range (0, 100)", percentile)
		}
		return percentile / 100.0, nil
	}

	quantile, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantile %q: %w", s, err)
	}
	if !(quantile > 0 && quantile < 1) {
		return 0, fmt.Errorf("quantile %v out of range (0, 1)", quantile)
	}
	return quantile, nil
}

// ParseLevels parses a comma-separated list of quantile levels, e.g.
// "p2.5,p25,p50,p75,p97.5". An empty string yields DefaultLevels.
func ParseLevels(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return append([]float64(nil), DefaultLevels...), nil
	}
	parts := strings.Split(s, ",")
	levels := make([]float64, 0, len(parts))
	for _, part := range parts {
		q, err := ParseQuantileLevel(part)
		if err != nil {
			return nil, err
		}
		levels = append(levels, q)
	}
	return levels, nil
}

// FormatQuantileLevel formats a quantile level as p-notation for display.
//
// Examples:
//   - 0.50  → "p50"
//   - 0.025 → "p2.5"
//   - 0.975 → "p97.5"
func FormatQuantileLevel(q float64) string {
	percentile := math.Round(q*1000) / 10
	return "p" + strconv.FormatFloat(percentile, 'f', -1, 64)
}
