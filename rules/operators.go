package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/liamcoop/formrules/expression"
)

type operatorFunc func(left, right any) bool

// operators is the condition operator matrix. String comparisons are
// case-insensitive; numeric ones need both sides to coerce to a number.
var operators = map[string]operatorFunc{
	"exists":         func(l, _ any) bool { return l != nil },
	"does_not_exist": func(l, _ any) bool { return l == nil },
	"is_empty":       func(l, _ any) bool { return isEmpty(l) },
	"is_not_empty":   func(l, _ any) bool { return !isEmpty(l) },

	"equals":     func(l, r any) bool { return lower(l) == lower(r) },
	"not_equals": func(l, r any) bool { return lower(l) != lower(r) },

	"contains":            func(l, r any) bool { return strings.Contains(lower(l), lower(r)) },
	"does_not_contain":    func(l, r any) bool { return !strings.Contains(lower(l), lower(r)) },
	"starts_with":         func(l, r any) bool { return strings.HasPrefix(lower(l), lower(r)) },
	"does_not_start_with": func(l, r any) bool { return !strings.HasPrefix(lower(l), lower(r)) },
	"ends_with":           func(l, r any) bool { return strings.HasSuffix(lower(l), lower(r)) },
	"does_not_end_with":   func(l, r any) bool { return !strings.HasSuffix(lower(l), lower(r)) },

	"greater_than":          numeric(func(l, r float64) bool { return l > r }),
	"less_than":             numeric(func(l, r float64) bool { return l < r }),
	"greater_than_or_equal": numeric(func(l, r float64) bool { return l >= r }),
	"less_than_or_equal":    numeric(func(l, r float64) bool { return l <= r }),

	// dates compare as YYYY-MM-DD strings
	"is_after":           date(func(l, r string) bool { return l > r }),
	"is_before":          date(func(l, r string) bool { return l < r }),
	"is_after_or_equal":  date(func(l, r string) bool { return l >= r }),
	"is_before_or_equal": date(func(l, r string) bool { return l <= r }),

	"is_true":  func(l, _ any) bool { return truthy(l, true) },
	"is_false": func(l, _ any) bool { return truthy(l, false) },
}

// EvaluateOperator applies a named operator to a field value and a compare
// value. Unknown operators are false.
func EvaluateOperator(op string, left, right any) bool {
	fn, ok := operators[normalizeOperator(op)]
	if !ok {
		return false
	}
	return fn(left, right)
}

// IsKnownOperator reports whether op names an operator
func IsKnownOperator(op string) bool {
	_, ok := operators[normalizeOperator(op)]
	return ok
}

func normalizeOperator(op string) string {
	return strings.ToLower(strings.TrimSpace(op))
}

func numeric(cmp func(l, r float64) bool) operatorFunc {
	return func(left, right any) bool {
		l, ok := expression.ToNumber(left)
		if !ok {
			return false
		}
		r, ok := expression.ToNumber(right)
		if !ok {
			return false
		}
		return cmp(l, r)
	}
}

func date(cmp func(l, r string) bool) operatorFunc {
	return func(left, right any) bool {
		l, r := stringOf(left), stringOf(right)
		if l == "" || r == "" {
			return false
		}
		return cmp(l, r)
	}
}

func isEmpty(v any) bool {
	return v == nil || stringOf(v) == ""
}

// truthy matches booleans and their yes/no spellings against want
func truthy(v any, want bool) bool {
	switch b := v.(type) {
	case bool:
		return b == want
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes":
			return want
		case "false", "no":
			return !want
		}
	}
	return false
}

func lower(v any) string {
	return strings.ToLower(stringOf(v))
}

// stringOf renders a value the way form inputs display it; nil is empty
func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	}
	if n, ok := expression.ToNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
