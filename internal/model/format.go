package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatPriceLabel renders the short price shown on a map marker, e.g.
// "$1.25M", "$850K", "$900". Listings without a price render as "N/A".
// The unit is chosen after rounding, so 999,999 renders as "$1M".
func FormatPriceLabel(price float64) string {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return "N/A"
	}
	switch {
	case math.Round(price/1_000) >= 1_000:
		return "$" + trimZeros(strconv.FormatFloat(price/1_000_000, 'f', 2, 64)) + "M"
	case math.Round(price) >= 1_000:
		return "$" + strconv.FormatFloat(price/1_000, 'f', 0, 64) + "K"
	default:
		return "$" + strconv.FormatFloat(price, 'f', 0, 64)
	}
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// TimeAgo renders a coarse relative age for listing cards ("just now",
// "5 minutes ago", "3 days ago").
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Minute {
		return "just now"
	}
	units := []struct {
		size time.Duration
		name string
	}{
		{365 * 24 * time.Hour, "year"},
		{30 * 24 * time.Hour, "month"},
		{7 * 24 * time.Hour, "week"},
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
	}
	for _, u := range units {
		if d >= u.size {
			n := int(d / u.size)
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}
