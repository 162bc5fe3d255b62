package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ValidateRuleSet checks a rule set for mistakes an author would want to hear
// about: unknown operators and action types, missing targets, and references
// to fields or categories that are not declared. It returns nil for a clean
// rule set, otherwise all problems joined.
//
// Validation is advisory. Evaluate accepts invalid rules and degrades safely.
func ValidateRuleSet(rules []Rule, fields []FieldDef) error {
	var errs []error

	declared := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			errs = append(errs, fmt.Errorf("field %d: id cannot be empty", i+1))
			continue
		}
		if declared[f.ID] {
			errs = append(errs, fmt.Errorf("field %q is declared more than once", f.ID))
		}
		declared[f.ID] = true
	}
	categories := indexCategories(fields)

	// with no field definitions there is nothing to check references against
	checkRefs := len(fields) > 0

	for i, rule := range rules {
		label := rule.label(i)

		if err := validateLogic(rule.Type); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		}

		for j, c := range rule.Conditions {
			for _, err := range validateCondition(c, declared, checkRefs) {
				errs = append(errs, fmt.Errorf("%s: condition %d: %w", label, j+1, err))
			}
		}

		if len(rule.Actions) == 0 {
			errs = append(errs, fmt.Errorf("%s: has no actions", label))
		}
		for j, a := range rule.Actions {
			for _, err := range validateAction(a, declared, categories, checkRefs) {
				errs = append(errs, fmt.Errorf("%s: action %d: %w", label, j+1, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validateLogic(l Logic) error {
	switch strings.ToUpper(strings.TrimSpace(string(l))) {
	case "", string(LogicAnd), string(LogicOr):
		return nil
	}
	return fmt.Errorf("unknown type %q (must be AND or OR)", l)
}

func validateCondition(c Condition, declared map[string]bool, checkRefs bool) []error {
	var errs []error

	if c.IsSQL() {
		if strings.TrimSpace(c.SQLExpression) == "" {
			errs = append(errs, fmt.Errorf("sql condition has no sql_expression"))
		}
		return errs
	}

	if c.Field == "" {
		errs = append(errs, fmt.Errorf("field cannot be empty"))
	} else if checkRefs && !declared[c.Field] {
		errs = append(errs, fmt.Errorf("field %q is not declared", c.Field))
	}

	if !IsKnownOperator(c.Operator) {
		errs = append(errs, fmt.Errorf("unknown operator %q", c.Operator))
	}

	switch strings.ToLower(strings.TrimSpace(c.ValueType)) {
	case "", SourceValue:
	case SourceField:
		if c.ValueField == "" {
			errs = append(errs, fmt.Errorf("value_type field requires value_field"))
		} else if checkRefs && !declared[c.ValueField] {
			errs = append(errs, fmt.Errorf("value_field %q is not declared", c.ValueField))
		}
	case SourceExpression:
		if strings.TrimSpace(c.ValueExpression) == "" {
			errs = append(errs, fmt.Errorf("value_type expression requires value_expression"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown value_type %q", c.ValueType))
	}

	return errs
}

func validateAction(a Action, declared map[string]bool, categories map[ID][]string, checkRefs bool) []error {
	var errs []error

	if !a.ValueType.known() {
		errs = append(errs, fmt.Errorf("unknown value_type %q", a.ValueType))
	}

	switch {
	case a.TargetType != "" && !strings.EqualFold(a.TargetType, TargetField) && !strings.EqualFold(a.TargetType, TargetCategory):
		errs = append(errs, fmt.Errorf("unknown target_type %q", a.TargetType))
	case a.targetsCategory():
		if a.TargetCategory == "" {
			errs = append(errs, fmt.Errorf("category target has no target_category"))
		} else if checkRefs && len(categories[a.TargetCategory]) == 0 {
			errs = append(errs, fmt.Errorf("category %q has no fields", a.TargetCategory))
		}
	case a.TargetField == "":
		errs = append(errs, fmt.Errorf("action has no target"))
	case checkRefs && !declared[a.TargetField]:
		errs = append(errs, fmt.Errorf("target field %q is not declared", a.TargetField))
	}

	switch a.ValueType.normalize() {
	case ActionField:
		if a.ValueField == "" {
			errs = append(errs, fmt.Errorf("value_type field requires value_field"))
		}
	case ActionExpression:
		if strings.TrimSpace(a.ValueExpression) == "" {
			errs = append(errs, fmt.Errorf("value_type expression requires value_expression"))
		}
	}

	return errs
}
