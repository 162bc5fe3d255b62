package expression

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestEvaluateArithmetic(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		values     map[string]any
		want       float64
	}{
		{"Precedence", "1 + 2 * 3", nil, 7},
		{"Parentheses", "(1 + 2) * 3", nil, 9},
		{"Left associative subtraction", "10 - 4 - 3", nil, 3},
		{"Left associative division", "100 / 10 / 2", nil, 5},
		{"Unary minus", "-{a} + 10", map[string]any{"a": 4}, 6},
		{"Unary plus", "+3 * 2", nil, 6},
		{"Division by zero", "1/0", nil, 0},
		{"Division by zero field", "{a} / {b} + 2", map[string]any{"a": 5, "b": 0}, 2},
		{"Decimal literal", ".5 * 4", nil, 2},
		{"String literal number", "'42' + 1", nil, 43},
		{"Skips stray operator", "5 + * 3", nil, 8},
		{"True and false identifiers", "TRUE + TRUE + FALSE", nil, 2},
		{"Unknown identifier", "foo + 1", nil, 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(tc.expression, tc.values)
			if !ok {
				t.Fatalf("Evaluate(%q) returned no value", tc.expression)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expression, got, tc.want)
			}
		})
	}
}

func TestEvaluateReferences(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		values     map[string]any
		want       float64
	}{
		{"Number field", "{price} * 2", map[string]any{"price": 10.5}, 21},
		{"Numeric string field", "{amount} + 1", map[string]any{"amount": "250"}, 251},
		{"True field", "{flag} * 5", map[string]any{"flag": true}, 5},
		{"False field", "{flag} * 5 + 1", map[string]any{"flag": false}, 1},
		{"Missing field", "{missing} + 1", map[string]any{}, 1},
		{"Non-numeric field", "{name} + 1", map[string]any{"name": "abc"}, 1},
		{"Nil field", "{empty} + 3", map[string]any{"empty": nil}, 3},
		{"Negative field after minus", "10 - {a}", map[string]any{"a": -5}, 15},
		{"Negative field after star", "2*{a}", map[string]any{"a": -5}, -10},
		{"Padded reference", "{ price } + 1", map[string]any{"price": 1}, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(tc.expression, tc.values)
			if !ok {
				t.Fatalf("Evaluate(%q) returned no value", tc.expression)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expression, got, tc.want)
			}
		})
	}
}

func TestEvaluateFunctions(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
		values     map[string]any
		want       float64
	}{
		{"Round field percentage", "ROUND({price} * 0.01, 2)", map[string]any{"price": 199}, 1.99},
		{"Round half up", "ROUND(1.005, 2)", nil, 1.01},
		{"Round default places", "ROUND(2.5)", nil, 3},
		{"Roundup", "ROUNDUP(1.231, 2)", nil, 1.24},
		{"Rounddown", "ROUNDDOWN(1.239, 2)", nil, 1.23},
		{"Round huge places", "ROUND(1.5, 100000000)", nil, 1.5},
		{"Roundup huge negative places", "ROUNDUP(123, -100000000)", nil, 1e20},
		{"Rounddown huge negative places", "ROUNDDOWN(123, -100000000)", nil, 0},
		{"Round places beyond int32", "ROUND(2.25, 1000000000000)", nil, 2.25},
		{"If with comparison", "IF({score} > 700, 1, 0)", map[string]any{"score": 750}, 1},
		{"If false branch", "IF({score} > 700, 1, 0)", map[string]any{"score": 650}, 0},
		{"Max", "MAX(1, 5, 3)", nil, 5},
		{"Min", "MIN(4, 2, 8)", nil, 2},
		{"Sum", "SUM(1, 2, 3)", nil, 6},
		{"Avg", "AVG(2, 4)", nil, 3},
		{"Avg empty", "AVG()", nil, 0},
		{"Max empty", "MAX()", nil, 0},
		{"Abs", "ABS(-3)", nil, 3},
		{"Power", "POWER(2, 10)", nil, 1024},
		{"Datediff", `DATEDIFF("2024-01-01", "2024-03-01")`, nil, 60},
		{"Datediff reversed", `DATEDIFF("2024-03-01", "2024-01-01")`, nil, 60},
		{"Year", `YEAR("2024-03-15")`, nil, 2024},
		{"Month", `MONTH("2024-03-15")`, nil, 3},
		{"Day", `DAY("2024-03-15")`, nil, 15},
		{"Pmt zero rate and term", "PMT(0, 0, 1000)", nil, 0},
		{"Pmt zero rate", "PMT(0, 10, 1000)", nil, 100},
		{"Pmt amortized", "ROUND(PMT(0.01, 12, 1000), 2)", nil, 88.85},
		{"Unknown function", "UNKNOWNFN(1,2)", nil, 0},
		{"Case insensitive", "max(1, 2)", nil, 2},
		{"Nested", "IF({a} > 1, ROUND({b} / 3, 2), 0)", map[string]any{"a": 2, "b": 10}, 3.33},
		{"Missing closing paren", "ROUND(1.234, 2", nil, 1.23},
		{"Trailing comma", "SUM(1, 2,)", nil, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(tc.expression, tc.values)
			if !ok {
				t.Fatalf("Evaluate(%q) returned no value", tc.expression)
			}
			if got != tc.want {
				t.Errorf("Evaluate(%q) = %v, want %v", tc.expression, got, tc.want)
			}
		})
	}
}

// TestEvaluateRoundBoundsPlaces verifies extreme places arguments return promptly
func TestEvaluateRoundBoundsPlaces(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, expr := range []string{
			"ROUND(1.5, 1000000000)",
			"ROUNDUP(123, -1000000000)",
			"ROUNDDOWN(-7.5, 2000000000)",
		} {
			Evaluate(expr, nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("rounding with extreme places did not return within 1s")
	}
}

func TestEvaluateComparisons(t *testing.T) {
	testCases := []struct {
		expression string
		want       float64
	}{
		{"3 >= 3", 1},
		{"3 > 3", 0},
		{"2 <= 1", 0},
		{"1 < 2", 1},
		{"2 = 2", 1},
		{"2 == 3", 0},
		{"2 <> 2", 0},
		{"2 != 3", 1},
		{"1 + 1 = 2", 1},
	}

	for _, tc := range testCases {
		t.Run(tc.expression, func(t *testing.T) {
			got, ok := Evaluate(tc.expression, nil)
			if !ok || got != tc.want {
				t.Errorf("Evaluate(%q) = %v, %v, want %v", tc.expression, got, ok, tc.want)
			}
		})
	}
}

func TestEvaluateNull(t *testing.T) {
	testCases := []struct {
		name       string
		expression string
	}{
		{"Empty", ""},
		{"Whitespace", "   "},
		{"Dangling operator", "1 +"},
		{"Only garbage", "$$$"},
		{"Overflow", "POWER(10, 400)"},
		{"Unclosed group", "(1 + "},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Evaluate(tc.expression, nil)
			if ok {
				t.Errorf("Evaluate(%q) = %v, want no value", tc.expression, got)
			}
		})
	}
}

func TestEvaluatorToday(t *testing.T) {
	e := &Evaluator{Now: func() time.Time {
		return time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)
	}}

	got, ok := e.Evaluate("TODAY()", nil)
	if !ok || got != 19724 {
		t.Errorf("TODAY() = %v, %v, want 19724", got, ok)
	}

	got, ok = e.Evaluate(`DATEDIFF(TODAY(), "2024-01-01")`, nil)
	if !ok || got != 1 {
		t.Errorf("DATEDIFF(TODAY(), ...) = %v, %v, want 1", got, ok)
	}

	got, ok = e.Evaluate("YEAR(TODAY())", nil)
	if !ok || got != 2024 {
		t.Errorf("YEAR(TODAY()) = %v, %v, want 2024", got, ok)
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	values := map[string]any{"price": 199, "qty": 3}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok := Evaluate("ROUND({price} * {qty} * 0.01, 2)", values)
			if !ok || got != 5.97 {
				t.Errorf("concurrent Evaluate = %v, %v, want 5.97", got, ok)
			}
		}()
	}
	wg.Wait()
}

func TestResolveReferences(t *testing.T) {
	got := ResolveReferences("{a} + {b} * {c} - {d}", map[string]any{
		"a": 1.5,
		"b": true,
		"c": "x",
		"d": -2,
	})
	want := "1.5 + 1 * 0 - (-2)"
	if got != want {
		t.Errorf("ResolveReferences() = %q, want %q", got, want)
	}
}

func TestToNumber(t *testing.T) {
	testCases := []struct {
		name  string
		input any
		want  float64
		ok    bool
	}{
		{"Int", 5, 5, true},
		{"Float", 2.5, 2.5, true},
		{"Numeric string", " 12.5 ", 12.5, true},
		{"Empty string", "", 0, false},
		{"Text", "abc", 0, false},
		{"Bool", true, 0, false},
		{"Nil", nil, 0, false},
		{"NaN string", "NaN", 0, false},
		{"Infinite", math.Inf(1), 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ToNumber(tc.input)
			if got != tc.want || ok != tc.ok {
				t.Errorf("ToNumber(%v) = %v, %v, want %v, %v", tc.input, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestDaysSinceEpoch(t *testing.T) {
	testCases := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"1970-01-01", 0, true},
		{"2024-01-01", 19723, true},
		{"2024-01-01T12:00:00Z", 19723, true},
		{"1969-12-31", -1, true},
		{"01/02/2024", 0, false},
		{"", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, ok := DaysSinceEpoch(tc.input)
			if got != tc.want || ok != tc.ok {
				t.Errorf("DaysSinceEpoch(%q) = %v, %v, want %v, %v", tc.input, got, ok, tc.want, tc.ok)
			}
		})
	}
}
