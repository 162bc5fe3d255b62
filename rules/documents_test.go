package rules

import (
	"encoding/json"
	"reflect"
	"testing"
)

// TestEvaluateDocuments verifies document visibility and requiredness in rule order
func TestEvaluateDocuments(t *testing.T) {
	selfEmployed := Condition{Field: "employment", Operator: "equals", Value: "self_employed"}

	testCases := []struct {
		name         string
		rules        []DocumentRule
		values       Values
		wantHidden   []string
		wantRequired []string
	}{
		{
			name: "Require when active",
			rules: []DocumentRule{{
				Type:       LogicAnd,
				Conditions: []Condition{selfEmployed},
				Actions: []DocumentAction{
					{DocumentTypeID: "tax_returns", ValueType: ActionRequired},
					{DocumentTypeID: "pay_stubs", ValueType: ActionNotVisible},
				},
			}},
			values:       Values{"employment": "Self_Employed"},
			wantHidden:   []string{"pay_stubs"},
			wantRequired: []string{"tax_returns"},
		},
		{
			name: "Inactive rule",
			rules: []DocumentRule{{
				Type:       LogicAnd,
				Conditions: []Condition{selfEmployed},
				Actions:    []DocumentAction{{DocumentTypeID: "tax_returns", ValueType: ActionRequired}},
			}},
			values: Values{"employment": "salaried"},
		},
		{
			name: "Later rule overrides",
			rules: []DocumentRule{
				{Type: LogicAnd, Actions: []DocumentAction{
					{DocumentTypeID: "1", ValueType: ActionRequired},
					{DocumentTypeID: "2", ValueType: ActionNotVisible},
				}},
				{Type: LogicAnd, Actions: []DocumentAction{
					{DocumentTypeID: "1", ValueType: ActionNotRequired},
					{DocumentTypeID: "2", ValueType: ActionVisible},
				}},
			},
			values: Values{},
		},
		{
			name: "Computed action types are ignored",
			rules: []DocumentRule{{Type: LogicAnd, Actions: []DocumentAction{
				{DocumentTypeID: "1", ValueType: ActionValue},
				{DocumentTypeID: "", ValueType: ActionRequired},
			}}},
			values: Values{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateDocuments(tc.rules, tc.values)
			if !reflect.DeepEqual(got.Hidden.Sorted(), tc.wantHidden) {
				t.Errorf("Hidden = %v, want %v", got.Hidden.Sorted(), tc.wantHidden)
			}
			if !reflect.DeepEqual(got.Required.Sorted(), tc.wantRequired) {
				t.Errorf("Required = %v, want %v", got.Required.Sorted(), tc.wantRequired)
			}
		})
	}
}

func TestEvaluateDocumentsJSON(t *testing.T) {
	var rules []DocumentRule
	err := json.Unmarshal([]byte(`[{
		"type": "OR",
		"conditions": [
			{"field": "units", "operator": "greater_than", "value": 1},
			{"field": "property_type", "operator": "equals", "value": "condo"}
		],
		"actions": [{"document_type_id": 12, "value_type": "required"}]
	}]`), &rules)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got := EvaluateDocuments(rules, Values{"units": 1, "property_type": "Condo"})

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"hidden_document_types":[],"required_document_types":["12"]}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
