package main

import (
	"github.com/liamcoop/formrules/rules"
)

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	Rules  []rules.Rule     `json:"rules"`
	Fields []rules.FieldDef `json:"fields"`
	Values rules.Values     `json:"values"`

	// ContextID is passed to the oracle for SQL conditions
	ContextID string `json:"context_id,omitempty"`
}

// EvaluateResponse is the cascade result plus request bookkeeping
type EvaluateResponse struct {
	EvaluationID string `json:"evaluation_id"`
	rules.Result
	EvaluationTime string `json:"evaluationTime"`
}

// DocumentsRequest is the body of POST /api/v1/documents/evaluate
type DocumentsRequest struct {
	Rules  []rules.DocumentRule `json:"rules"`
	Values rules.Values         `json:"values"`
}

// ConstraintsRequest is the body of POST /api/v1/constraints/resolve
type ConstraintsRequest struct {
	Config *rules.NumberConstraintConfig `json:"config"`
	Values rules.Values                  `json:"values"`
}

// ExpressionRequest is the body of POST /api/v1/expressions/evaluate
type ExpressionRequest struct {
	Expression string       `json:"expression"`
	Values     rules.Values `json:"values"`
}

// ExpressionResponse carries a null result when the formula has no value
type ExpressionResponse struct {
	Result *float64 `json:"result"`
}

// ValidateRequest is the body of POST /api/v1/rules/validate
type ValidateRequest struct {
	Rules  []rules.Rule     `json:"rules"`
	Fields []rules.FieldDef `json:"fields"`
}

// ValidateResponse lists every problem found
type ValidateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// HealthResponse is returned by GET /api/v1/health
type HealthResponse struct {
	Status string `json:"status"`
	Oracle string `json:"oracle"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the envelope for every non-2xx reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
