package auth

import "time"

// IsWithinThresholdPeriod reports whether t is no older than the given
// period, e.g. "24h". The period uses time.ParseDuration syntax.
func IsWithinThresholdPeriod(t time.Time, period string) (bool, error) {
	d, err := time.ParseDuration(period)
	if err != nil {
		return false, err
	}
	return time.Since(t) <= d, nil
}

// IsOutsideThresholdPeriod reports whether t is older than the given period.
func IsOutsideThresholdPeriod(t time.Time, period string) (bool, error) {
	within, err := IsWithinThresholdPeriod(t, period)
	if err != nil {
		return false, err
	}
	return !within, nil
}
