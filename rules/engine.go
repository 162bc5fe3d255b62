package rules

import (
	"context"
	"log/slog"

	"github.com/liamcoop/formrules/expression"
)

// MaxPasses bounds the cascade so contradictory rules cannot loop forever
const MaxPasses = 10

// Engine evaluates form rule sets. It holds no per-evaluation state, so one
// Engine is safe for concurrent use. The zero value is ready to use.
type Engine struct {
	// Expressions evaluates formulas; nil uses the wall clock
	Expressions *expression.Evaluator

	// Logger receives diagnostics such as oracle failures; nil uses slog.Default()
	Logger *slog.Logger
}

var defaultEngine = &Engine{}

// ConditionStrategy decides whether a rule is active for a value snapshot.
// The cascade is the same for every strategy; only condition answering differs.
type ConditionStrategy interface {
	RuleActive(ctx context.Context, rule Rule, values Values) bool
}

// localStrategy answers every condition from the value snapshot
type localStrategy struct {
	en *Engine
}

func (s localStrategy) RuleActive(_ context.Context, rule Rule, values Values) bool {
	return s.en.EvaluateConditions(rule.Type, rule.Conditions, values)
}

// Evaluate runs the cascade with the default engine
func Evaluate(rules []Rule, fields []FieldDef, values Values) Result {
	return defaultEngine.Evaluate(rules, fields, values)
}

// Evaluate computes hidden fields, required fields and computed values for a
// rule set. It is pure: the input snapshot is never modified.
func (en *Engine) Evaluate(rules []Rule, fields []FieldDef, values Values) Result {
	return en.Cascade(context.Background(), localStrategy{en: en}, rules, fields, values)
}

// Cascade repeatedly evaluates the rule list until the computed values reach a
// fixed point or MaxPasses passes have run.
//
// Each pass starts from empty hidden/required sets and evaluates every rule, in
// order, against the working snapshot (input values overlaid with the computed
// values of the previous pass). Within a pass the last action touching a target
// wins. Computed values carry over between passes; visibility and requiredness
// do not.
func (en *Engine) Cascade(ctx context.Context, strategy ConditionStrategy, rules []Rule, fields []FieldDef, values Values) Result {
	categories := indexCategories(fields)

	computed := Values{}
	working := values.Overlay(computed)
	result := Result{Hidden: Set{}, Required: Set{}}

	for pass := 1; pass <= MaxPasses; pass++ {
		if ctx.Err() != nil {
			break
		}

		state := passState{
			hidden:   Set{},
			required: Set{},
			computed: computed.Clone(),
		}
		for _, rule := range rules {
			if !strategy.RuleActive(ctx, rule, working) {
				continue
			}
			for _, action := range rule.Actions {
				en.apply(action, categories, working, &state)
			}
		}

		result.Hidden = state.hidden
		result.Required = state.required
		result.Passes = pass

		stable := state.computed.Equal(computed)
		computed = state.computed
		if stable {
			result.Converged = true
			break
		}
		working = values.Overlay(computed)
	}

	result.Computed = computed
	return result
}

// passState is the outcome being built by one cascade pass
type passState struct {
	hidden   Set
	required Set
	computed Values
}

func (en *Engine) apply(a Action, categories map[ID][]string, working Values, state *passState) {
	targets := a.targets(categories)
	if len(targets) == 0 {
		return
	}

	switch a.ValueType.normalize() {
	case ActionVisible:
		for _, id := range targets {
			delete(state.hidden, id)
		}
	case ActionNotVisible:
		for _, id := range targets {
			state.hidden[id] = struct{}{}
		}
	case ActionRequired:
		for _, id := range targets {
			state.required[id] = struct{}{}
		}
	case ActionNotRequired:
		for _, id := range targets {
			delete(state.required, id)
		}
	case ActionValue, ActionField, ActionExpression:
		v := en.actionValue(a, working)
		if v == nil {
			return
		}
		for _, id := range targets {
			state.computed[id] = v
		}
	}
}

// actionValue resolves the value a computed action writes; nil means no write
func (en *Engine) actionValue(a Action, working Values) any {
	switch a.ValueType.normalize() {
	case ActionField:
		return working[a.ValueField]
	case ActionExpression:
		return en.evaluateExpression(a.ValueExpression, working)
	default:
		return a.Value
	}
}

// indexCategories maps each category id to its fields in declaration order
func indexCategories(fields []FieldDef) map[ID][]string {
	index := make(map[ID][]string)
	for _, f := range fields {
		if f.Category == "" || f.ID == "" {
			continue
		}
		index[f.Category] = append(index[f.Category], f.ID)
	}
	return index
}

func (en *Engine) expressions() *expression.Evaluator {
	if en == nil || en.Expressions == nil {
		return &expression.Evaluator{}
	}
	return en.Expressions
}

func (en *Engine) logger() *slog.Logger {
	if en == nil || en.Logger == nil {
		return slog.Default()
	}
	return en.Logger
}
