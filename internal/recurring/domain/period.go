package domain

import (
	"time"
)

const periodLayout = "2006-01"

// PeriodKey is the UTC calendar month containing t, as "YYYY-MM".
func PeriodKey(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// ValidPeriodKey reports whether key is a well-formed "YYYY-MM" month.
func ValidPeriodKey(key string) bool {
	if len(key) != len(periodLayout) {
		return false
	}
	_, err := time.Parse(periodLayout, key)
	return err == nil
}
