package rules

import (
	"encoding/json"
	"testing"
)

func TestIDUnmarshal(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"String", `"cat-1"`, "cat-1", false},
		{"Integer", `7`, "7", false},
		{"Decimal", `7.5`, "7.5", false},
		{"Object", `{}`, "", true},
		{"Bool", `true`, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tc.input), &id)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if id != tc.want {
				t.Errorf("id = %q, want %q", id, tc.want)
			}
		})
	}
}

// TestResultJSON verifies sets encode as sorted arrays under the documented keys
func TestResultJSON(t *testing.T) {
	r := Result{
		Hidden:    NewSet("c", "a", "b"),
		Required:  Set{},
		Computed:  Values{"rate": 0.07},
		Passes:    2,
		Converged: true,
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"hidden_fields":["a","b","c"],"required_fields":[],"computed_values":{"rate":0.07},"passes":2,"converged":true}`
	if string(data) != want {
		t.Errorf("got  %s\nwant %s", data, want)
	}

	var back Result
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Hidden.Has("b") || len(back.Hidden) != 3 {
		t.Errorf("Hidden = %v", back.Hidden.Sorted())
	}
}

func TestValuesOverlayAndEqual(t *testing.T) {
	base := Values{"a": 1, "b": []any{"x"}}
	over := base.Overlay(Values{"a": 2})

	if base["a"] != 1 {
		t.Error("Overlay modified the base snapshot")
	}
	if over["a"] != 2 {
		t.Errorf("over[a] = %v, want 2", over["a"])
	}
	if !over.Equal(Values{"a": 2, "b": []any{"x"}}) {
		t.Error("Equal should compare nested values structurally")
	}
	if over.Equal(Values{"a": 2}) {
		t.Error("Equal should notice a missing key")
	}
}
