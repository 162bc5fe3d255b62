package rules

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ID is an identifier that may arrive as a JSON string or number
// (category and document type ids are numeric in some rule exports).
type ID string

// UnmarshalJSON accepts both "7" and 7
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %s", data)
	}
	*id = ID(n.String())
	return nil
}

// Logic combines a rule's conditions
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// IsOr reports whether conditions combine with OR. Anything else, including
// an empty type, means AND.
func (l Logic) IsOr() bool {
	return strings.EqualFold(strings.TrimSpace(string(l)), string(LogicOr))
}

// Combine folds per-condition results. An empty list is true.
func (l Logic) Combine(results []bool) bool {
	if len(results) == 0 {
		return true
	}
	if l.IsOr() {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

// Compare value sources for a condition's right-hand side
const (
	SourceValue      = "value"
	SourceField      = "field"
	SourceExpression = "expression"
	SourceSQL        = "sql"
)

// Condition compares a field's current value against a compare value.
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`

	// Value is the literal compare value (ValueType "value" or empty)
	Value any `json:"value,omitempty"`

	// ValueType selects where the compare value comes from:
	// "value", "field", "expression" or "sql"
	ValueType       string `json:"value_type,omitempty"`
	ValueField      string `json:"value_field,omitempty"`
	ValueExpression string `json:"value_expression,omitempty"`

	// SourceType "sql" marks a condition answered by the remote oracle
	SourceType    string `json:"source_type,omitempty"`
	SQLExpression string `json:"sql_expression,omitempty"`
}

// IsSQL reports whether the condition must be answered by the oracle
func (c Condition) IsSQL() bool {
	return strings.EqualFold(c.SourceType, SourceSQL) || strings.EqualFold(c.ValueType, SourceSQL)
}

// ActionType is the effect an action has on its targets
type ActionType string

const (
	ActionVisible     ActionType = "visible"
	ActionNotVisible  ActionType = "not_visible"
	ActionRequired    ActionType = "required"
	ActionNotRequired ActionType = "not_required"
	ActionValue       ActionType = "value"
	ActionField       ActionType = "field"
	ActionExpression  ActionType = "expression"
)

func (a ActionType) normalize() ActionType {
	return ActionType(strings.ToLower(strings.TrimSpace(string(a))))
}

// IsComputed reports whether the action writes a computed value
func (a ActionType) IsComputed() bool {
	switch a.normalize() {
	case ActionValue, ActionField, ActionExpression:
		return true
	}
	return false
}

func (a ActionType) known() bool {
	switch a.normalize() {
	case ActionVisible, ActionNotVisible, ActionRequired, ActionNotRequired:
		return true
	}
	return a.IsComputed()
}

// Action targets
const (
	TargetField    = "field"
	TargetCategory = "category"
)

// Action is applied when its rule is active. It targets either a single field
// or every field of a category.
type Action struct {
	TargetType     string `json:"target_type,omitempty"`
	TargetField    string `json:"target_field,omitempty"`
	TargetCategory ID     `json:"target_category,omitempty"`

	ValueType       ActionType `json:"value_type"`
	Value           any        `json:"value,omitempty"`
	ValueField      string     `json:"value_field,omitempty"`
	ValueExpression string     `json:"value_expression,omitempty"`
}

// targetsCategory reports whether the action fans out over a category.
// Without an explicit target type, a category id alone implies a category target.
func (a Action) targetsCategory() bool {
	if a.TargetType != "" {
		return strings.EqualFold(a.TargetType, TargetCategory)
	}
	return a.TargetField == "" && a.TargetCategory != ""
}

// targets resolves the field ids an action applies to
func (a Action) targets(categories map[ID][]string) []string {
	if a.targetsCategory() {
		return categories[a.TargetCategory]
	}
	if a.TargetField == "" {
		return nil
	}
	return []string{a.TargetField}
}

// Rule is a list of conditions and the actions applied while they hold.
type Rule struct {
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Type       Logic       `json:"type"`
	Conditions []Condition `json:"conditions"`
	Actions    []Action    `json:"actions"`
}

// HasSQLConditions reports whether any condition needs the oracle
func (r Rule) HasSQLConditions() bool {
	for _, c := range r.Conditions {
		if c.IsSQL() {
			return true
		}
	}
	return false
}

// label names a rule in diagnostics
func (r Rule) label(index int) string {
	switch {
	case r.Name != "":
		return fmt.Sprintf("rule %d (%s)", index+1, r.Name)
	case r.ID != "":
		return fmt.Sprintf("rule %d (%s)", index+1, r.ID)
	default:
		return fmt.Sprintf("rule %d", index+1)
	}
}

// FieldDef declares a form field and the category it belongs to
type FieldDef struct {
	ID       string `json:"id"`
	Category ID     `json:"category_id,omitempty"`
}

// Result is the outcome of evaluating a rule set against a value snapshot.
type Result struct {
	Hidden   Set    `json:"hidden_fields"`
	Required Set    `json:"required_fields"`
	Computed Values `json:"computed_values"`

	// Passes is the number of cascade passes run
	Passes int `json:"passes"`

	// Converged is false when the pass bound was hit before the computed
	// values stopped changing
	Converged bool `json:"converged"`
}

// DocumentAction toggles visibility or requiredness of a document type
type DocumentAction struct {
	DocumentTypeID ID         `json:"document_type_id"`
	ValueType      ActionType `json:"value_type"`
}

// DocumentRule drives the document checklist
type DocumentRule struct {
	ID         string           `json:"id,omitempty"`
	Name       string           `json:"name,omitempty"`
	Type       Logic            `json:"type"`
	Conditions []Condition      `json:"conditions"`
	Actions    []DocumentAction `json:"actions"`
}

// DocumentResult lists the document types that deviate from the default
// (visible, not required)
type DocumentResult struct {
	Hidden   Set `json:"hidden_document_types"`
	Required Set `json:"required_document_types"`
}

// NumberConstraintConfig holds a numeric field's default bounds and the
// conditional overrides checked in order.
type NumberConstraintConfig struct {
	Min                    *float64         `json:"min,omitempty"`
	Max                    *float64         `json:"max,omitempty"`
	Step                   *float64         `json:"step,omitempty"`
	ConditionalConstraints []ConstraintRule `json:"conditional_constraints,omitempty"`
}

// ConstraintRule overrides min and/or max while its conditions hold
type ConstraintRule struct {
	Type       Logic       `json:"type,omitempty"`
	Conditions []Condition `json:"conditions"`
	Min        *float64    `json:"min,omitempty"`
	Max        *float64    `json:"max,omitempty"`
}

// NumberConstraint is the effective (min, max, step) triple; nil means unbounded
type NumberConstraint struct {
	Min  *float64 `json:"min"`
	Max  *float64 `json:"max"`
	Step *float64 `json:"step"`
}
