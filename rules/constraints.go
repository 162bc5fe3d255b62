package rules

// ResolveConstraints resolves number constraints with the default engine
func ResolveConstraints(cfg *NumberConstraintConfig, values Values) NumberConstraint {
	return defaultEngine.ResolveConstraints(cfg, values)
}

// ResolveConstraints picks the effective min/max/step for a numeric field.
// The first conditional constraint whose conditions hold supplies min and max,
// falling back to the defaults for whichever it leaves unset. Step always comes
// from the defaults. A nil config has no bounds at all.
func (en *Engine) ResolveConstraints(cfg *NumberConstraintConfig, values Values) NumberConstraint {
	if cfg == nil {
		return NumberConstraint{}
	}

	out := NumberConstraint{
		Min:  clonePtr(cfg.Min),
		Max:  clonePtr(cfg.Max),
		Step: clonePtr(cfg.Step),
	}

	for _, rule := range cfg.ConditionalConstraints {
		if !en.EvaluateConditions(rule.Type, rule.Conditions, values) {
			continue
		}
		if rule.Min != nil {
			out.Min = clonePtr(rule.Min)
		}
		if rule.Max != nil {
			out.Max = clonePtr(rule.Max)
		}
		break
	}

	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
