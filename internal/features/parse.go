package features

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFeature is wrapped by every validation failure.
var ErrInvalidFeature = errors.New("invalid feature value")

// Policy selects how malformed user input is handled.
type Policy string

const (
	// PolicyCoerce replaces absent or non-numeric input with 0.
	PolicyCoerce Policy = "coerce"
	// PolicyReject fails the whole vector when any entry is malformed.
	PolicyReject Policy = "reject"
)

// ParsePolicy parses a policy name. Empty selects PolicyCoerce.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(PolicyCoerce):
		return PolicyCoerce, nil
	case string(PolicyReject):
		return PolicyReject, nil
	default:
		return "", fmt.Errorf("unknown validation policy %q (want coerce or reject)", s)
	}
}

// ValidationError lists the fields that failed to parse.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidFeature, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidFeature
}

// Parse normalizes raw user-entered strings into a FeatureVector.
//
// Entries are trimmed before parsing. Unknown keys are ignored. Under
// PolicyCoerce an entry keeps its longest leading decimal number, so "12abc"
// reads as 12 and "1,200" as 1. Absent, empty, non-numeric and non-finite
// entries become 0 and Parse never fails. Under PolicyReject an entry must be
// a complete finite number; Parse returns a *ValidationError naming every
// offending field otherwise.
func Parse(raw map[string]string, policy Policy) (FeatureVector, error) {
	var v FeatureVector
	var bad []string
	for _, name := range order {
		f, ok := parseNumber(raw[name])
		if !ok {
			bad = append(bad, name)
			f = leadingNumber(raw[name])
		}
		v.Set(name, f)
	}
	if policy == PolicyReject && len(bad) > 0 {
		return FeatureVector{}, &ValidationError{Fields: bad}
	}
	return v, nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !finite(f) {
		return 0, false
	}
	return f, true
}

// leadingNumber parses the longest prefix of s of the form
// [+-]digits[.digits][(e|E)[+-]digits]. It returns 0 when there is no such
// prefix or the value is zero or not finite.
func leadingNumber(s string) float64 {
	s = strings.TrimSpace(s)
	n := decimalPrefix(s)
	if n == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s[:n], 64)
	if err != nil || !finite(f) || f == 0 {
		return 0
	}
	return f
}

func decimalPrefix(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	intStart := i
	i = skipDigits(s, i)
	intDigits := i - intStart

	fracDigits := 0
	if i < len(s) && s[i] == '.' {
		j := skipDigits(s, i+1)
		fracDigits = j - i - 1
		if intDigits > 0 || fracDigits > 0 {
			i = j
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0
	}

	// An exponent only counts when at least one digit follows it.
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		if k := skipDigits(s, j); k > j {
			i = k
		}
	}
	return i
}

func skipDigits(s string, i int) int {
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return i
}
