package metrics

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hospital/hospital-backend/internal/platform/apperr"
)

// daysPerYear is the mean Gregorian year length used for fractional ages.
const daysPerYear = 365.2425

const secondsPerDay = 24 * 60 * 60

// Query parameter names for the optional age window.
const (
	ParamMinAge = "min_age"
	ParamMaxAge = "max_age"
)

// Bounds is an optional inclusive age window. A nil bound is unbounded.
type Bounds struct {
	Min *float64
	Max *float64
}

// IsZero reports whether neither bound is set.
func (b Bounds) IsZero() bool {
	return b.Min == nil && b.Max == nil
}

// Contains reports whether age lies inside the window, inclusive at both ends.
func (b Bounds) Contains(age float64) bool {
	if b.Min != nil && age < *b.Min {
		return false
	}
	if b.Max != nil && age > *b.Max {
		return false
	}
	return true
}

// ParseBounds reads min_age and max_age from query. Absent or empty values
// leave the bound open. Non-numeric, non-finite or negative values and
// min_age > max_age are validation errors.
func ParseBounds(query url.Values) (Bounds, error) {
	var b Bounds
	var err error
	if b.Min, err = parseBound(ParamMinAge, query.Get(ParamMinAge)); err != nil {
		return Bounds{}, err
	}
	if b.Max, err = parseBound(ParamMaxAge, query.Get(ParamMaxAge)); err != nil {
		return Bounds{}, err
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return Bounds{}, apperr.Validation(fmt.Sprintf("%s must not exceed %s", ParamMinAge, ParamMaxAge))
	}
	return b, nil
}

func parseBound(name, raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, apperr.Validation(fmt.Sprintf("%s must be a number", name))
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, apperr.Validation(fmt.Sprintf("%s must be finite", name))
	}
	if v < 0 {
		return nil, apperr.Validation(fmt.Sprintf("%s must not be negative", name))
	}
	return &v, nil
}

// AgeInYears returns the fractional age on asOf's calendar date of someone
// born on dob (YYYY-MM-DD), rounded to two decimals.
func AgeInYears(dob string, asOf time.Time) (float64, error) {
	birth, err := time.Parse(time.DateOnly, strings.TrimSpace(dob))
	if err != nil {
		return 0, fmt.Errorf("parse date of birth %q: %w", dob, err)
	}
	y, m, d := asOf.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	// Both are UTC midnights; Unix seconds avoid time.Duration's ~292 year range.
	days := (today.Unix() - birth.Unix()) / secondsPerDay
	return round2(float64(days) / daysPerYear), nil
}

// round2 rounds half away from zero to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
