package permission

import "github.com/bmatcuk/doublestar/v4"

// Rule is a declarative permission rule with glob pattern matching.
type Rule struct {
	Pattern  string   // glob pattern, e.g. "mcp__Playwright__*", "Bash", "Edit"
	Decision Decision // Allow, Deny, or Ask
}

// Rules builds rules from the allow/ask/deny lists of a settings file.
func Rules(allow, ask, deny []string) []Rule {
	rules := make([]Rule, 0, len(allow)+len(ask)+len(deny))
	for _, p := range allow {
		rules = append(rules, Rule{Pattern: p, Decision: Allow})
	}
	for _, p := range ask {
		rules = append(rules, Rule{Pattern: p, Decision: Ask})
	}
	for _, p := range deny {
		rules = append(rules, Rule{Pattern: p, Decision: Deny})
	}
	return rules
}

// MatchRules evaluates rules against a tool name.
// Evaluation order: deny rules, then ask rules, then allow rules.
// Returns (decision, matched). If no rule matches, matched is false.
func MatchRules(rules []Rule, toolName string) (Decision, bool) {
	var hasAsk, hasAllow bool

	for _, r := range rules {
		ok, err := doublestar.Match(r.Pattern, toolName)
		if err != nil || !ok {
			continue
		}
		switch r.Decision {
		case Deny:
			return Deny, true
		case Ask:
			hasAsk = true
		case Allow:
			hasAllow = true
		}
	}

	if hasAsk {
		return Ask, true
	}
	if hasAllow {
		return Allow, true
	}
	return Allow, false
}
