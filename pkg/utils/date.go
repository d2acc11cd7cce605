package utils

import "time"

const DateLayout = "2006-01-02"

func TimeNowUTC() time.Time {
	return time.Now().UTC()
}

// ParseDate parses a date-only value (YYYY-MM-DD). Empty input yields nil.
func ParseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
