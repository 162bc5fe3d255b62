package rules

// EvaluateDocuments evaluates document rules with the default engine
func EvaluateDocuments(rules []DocumentRule, values Values) DocumentResult {
	return defaultEngine.EvaluateDocuments(rules, values)
}

// EvaluateDocuments decides which document types are hidden or required.
// Every document type starts visible and optional; active rules override that
// in order, so a later rule wins. There is a single pass because document
// state never feeds back into field values.
func (en *Engine) EvaluateDocuments(rules []DocumentRule, values Values) DocumentResult {
	result := DocumentResult{Hidden: Set{}, Required: Set{}}

	for _, rule := range rules {
		if !en.EvaluateConditions(rule.Type, rule.Conditions, values) {
			continue
		}
		for _, a := range rule.Actions {
			id := string(a.DocumentTypeID)
			if id == "" {
				continue
			}
			switch a.ValueType.normalize() {
			case ActionVisible:
				delete(result.Hidden, id)
			case ActionNotVisible:
				result.Hidden[id] = struct{}{}
			case ActionRequired:
				result.Required[id] = struct{}{}
			case ActionNotRequired:
				delete(result.Required, id)
			}
		}
	}

	return result
}
