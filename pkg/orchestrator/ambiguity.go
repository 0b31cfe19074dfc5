package orchestrator

import "sort"

// AmbiguityRule decides whether an intake carries enough information to
// dispatch the chosen Template without asking a clarifying question.
// spec.md §4.10 mandates the interface but leaves the policy abstract;
// this module makes it an explicit, swappable seam rather than a
// hard-coded heuristic.
type AmbiguityRule interface {
	Evaluate(tpl Template, requestText string) (ambiguous bool, missingFields []string)
}

// RequiredFieldsRule flags an intake as ambiguous when the selected
// template's RequiredFields are not all present (and non-empty) in the
// work_context extracted from the request text. This is the default rule.
type RequiredFieldsRule struct{}

var _ AmbiguityRule = RequiredFieldsRule{}

// Evaluate implements AmbiguityRule.
func (RequiredFieldsRule) Evaluate(tpl Template, requestText string) (bool, []string) {
	ctx := ExtractWorkContext(requestText)
	var missing []string
	for _, field := range tpl.RequiredFields {
		v, ok := ctx[field]
		if !ok {
			missing = append(missing, field)
			continue
		}
		if s, isString := v.(string); isString && s == "" {
			missing = append(missing, field)
		}
	}
	sort.Strings(missing)
	return len(missing) > 0, missing
}
