package rules

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ConditionOracle answers SQL-sourced conditions remotely
type ConditionOracle interface {
	EvaluateCondition(ctx context.Context, sqlExpression, contextID string) (bool, error)
}

// OracleStrategy answers rules that contain SQL conditions by asking the
// oracle, and all other rules locally.
type OracleStrategy struct {
	Engine    *Engine
	Oracle    ConditionOracle
	ContextID string
}

// RuleActive evaluates all conditions of an SQL-bearing rule concurrently.
// A failed oracle call makes that condition false and is logged.
func (s *OracleStrategy) RuleActive(ctx context.Context, rule Rule, values Values) bool {
	en := s.Engine
	if en == nil {
		en = defaultEngine
	}
	if !rule.HasSQLConditions() {
		return en.EvaluateConditions(rule.Type, rule.Conditions, values)
	}

	results := make([]bool, len(rule.Conditions))
	var g errgroup.Group
	for i, c := range rule.Conditions {
		g.Go(func() error {
			if c.IsSQL() {
				results[i] = s.ask(ctx, en, c)
			} else {
				results[i] = en.EvaluateCondition(c, values)
			}
			return nil
		})
	}
	_ = g.Wait()

	return rule.Type.Combine(results)
}

func (s *OracleStrategy) ask(ctx context.Context, en *Engine, c Condition) bool {
	if s.Oracle == nil {
		en.logger().Warn("no oracle configured for sql condition", "field", c.Field)
		return false
	}

	result, err := s.Oracle.EvaluateCondition(ctx, c.SQLExpression, s.ContextID)
	if err != nil {
		en.logger().Warn("sql condition failed, treating as false",
			"field", c.Field,
			"context_id", s.ContextID,
			"error", err,
		)
		return false
	}
	return result
}

// EvaluateWithOracle runs the cascade, sending SQL conditions to the oracle.
// Rules are still processed in order; only conditions within a rule run
// concurrently.
func (en *Engine) EvaluateWithOracle(ctx context.Context, oracle ConditionOracle, contextID string, rules []Rule, fields []FieldDef, values Values) Result {
	strategy := &OracleStrategy{Engine: en, Oracle: oracle, ContextID: contextID}
	return en.Cascade(ctx, strategy, rules, fields, values)
}

// EvaluateWithOracle runs the oracle-backed cascade with the default engine
func EvaluateWithOracle(ctx context.Context, oracle ConditionOracle, contextID string, rules []Rule, fields []FieldDef, values Values) Result {
	return defaultEngine.EvaluateWithOracle(ctx, oracle, contextID, rules, fields, values)
}

// HasSQLConditions reports whether any rule in the set needs the oracle
func HasSQLConditions(rules []Rule) bool {
	for _, r := range rules {
		if r.HasSQLConditions() {
			return true
		}
	}
	return false
}
