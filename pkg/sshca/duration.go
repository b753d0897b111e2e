package sshca

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses a certificate validity duration. It accepts
// everything time.ParseDuration does plus a "d" suffix for whole days:
// "90m", "8h", "7d". The duration must be positive.
func ParseDuration(s string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid validity duration %q (use formats like 8h, 24h, 7d)", s)
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		var err error
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid validity duration %q (use formats like 8h, 24h, 7d)", s)
		}
	}

	if d <= 0 {
		return 0, fmt.Errorf("validity duration must be positive, got %q", s)
	}
	return d, nil
}
