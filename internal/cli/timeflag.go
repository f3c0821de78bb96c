package cli

import (
	"fmt"
	"time"
)

// parseTimeFlag accepts RFC3339 or a bare UTC date.
func parseTimeFlag(name, value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q: expected RFC3339 or YYYY-MM-DD", name, value)
	}
	return t, nil
}

func optionalTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseTimeFlag(name, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
