// Package expression implements the safe formula language used by form rules.
//
// Formulas are arithmetic over numbers with a fixed library of spreadsheet-style
// functions. Field values are referenced as {field_id} and substituted as plain
// numbers before parsing, so a formula can never reach anything but the values
// it is given.
//
//	ROUND({loan_amount} * {rate} / 12, 2)
//	IF({credit_score} >= 700, 0.05, 0.07)
//	PMT({rate} / 12, {term_months}, {loan_amount})
//
// Evaluation never fails loudly: malformed formulas, missing fields and
// non-finite results all come back as "no value".
package expression

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var referencePattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Evaluator evaluates formulas. The zero value uses the wall clock for TODAY().
type Evaluator struct {
	// Now supplies the current time for TODAY(). Defaults to time.Now.
	Now func() time.Time
}

var defaultEvaluator = &Evaluator{}

// Evaluate evaluates a formula against a value snapshot using the wall clock.
// The boolean is false when the formula has no numeric result.
func Evaluate(expression string, values map[string]any) (float64, bool) {
	return defaultEvaluator.Evaluate(expression, values)
}

// Evaluate resolves {field} references, then parses and evaluates the formula.
// It returns (0, false) for unparseable formulas and non-finite results.
func (e *Evaluator) Evaluate(expression string, values map[string]any) (result float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			result, ok = 0, false
		}
	}()

	now := time.Now
	if e != nil && e.Now != nil {
		now = e.Now
	}

	p := &parser{
		tokens: Tokenize(ResolveReferences(expression, values)),
		now:    now,
	}
	v, err := p.comparison()
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

// ResolveReferences replaces every {id} with the numeric form of values[id].
// Booleans become 1 or 0; missing and non-numeric values become 0.
func ResolveReferences(expression string, values map[string]any) string {
	return referencePattern.ReplaceAllStringFunc(expression, func(ref string) string {
		id := strings.TrimSpace(ref[1 : len(ref)-1])
		return formatNumber(referenceValue(values[id]))
	})
}

func referenceValue(v any) float64 {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	if n, ok := ToNumber(v); ok {
		return n
	}
	return 0
}

func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v < 0 {
		return "(" + s + ")"
	}
	return s
}

// ToNumber coerces numeric Go values and numeric strings to float64.
// Booleans, empty strings and non-finite values do not coerce.
func ToNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// DaysSinceEpoch parses a YYYY-MM-DD date (a longer ISO timestamp is cut to
// its date part) and returns whole days since 1970-01-01.
func DaysSinceEpoch(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, false
	}
	return math.Floor(float64(t.Unix()) / secondsPerDay), true
}
