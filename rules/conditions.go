package rules

import (
	"strings"
)

// EvaluateCondition evaluates a single condition with the default engine
func EvaluateCondition(c Condition, values Values) bool {
	return defaultEngine.EvaluateCondition(c, values)
}

// EvaluateConditions combines a condition list with the default engine
func EvaluateConditions(logic Logic, conditions []Condition, values Values) bool {
	return defaultEngine.EvaluateConditions(logic, conditions, values)
}

// EvaluateCondition compares values[c.Field] with the condition's compare value.
// SQL conditions cannot be answered locally and are false here.
func (en *Engine) EvaluateCondition(c Condition, values Values) bool {
	if c.IsSQL() {
		return false
	}
	return EvaluateOperator(c.Operator, values[c.Field], en.CompareValue(c, values))
}

// EvaluateConditions combines conditions with AND or OR. An empty list is true.
func (en *Engine) EvaluateConditions(logic Logic, conditions []Condition, values Values) bool {
	if len(conditions) == 0 {
		return true
	}
	or := logic.IsOr()
	for _, c := range conditions {
		if en.EvaluateCondition(c, values) == or {
			return or
		}
	}
	return !or
}

// CompareValue resolves the right-hand side of a condition: a literal,
// another field's current value, or an expression result (nil when the
// expression has no value).
func (en *Engine) CompareValue(c Condition, values Values) any {
	switch strings.ToLower(strings.TrimSpace(c.ValueType)) {
	case SourceField:
		return values[c.ValueField]
	case SourceExpression:
		return en.evaluateExpression(c.ValueExpression, values)
	default:
		return c.Value
	}
}

func (en *Engine) evaluateExpression(expr string, values Values) any {
	v, ok := en.expressions().Evaluate(expr, values)
	if !ok {
		return nil
	}
	return v
}
