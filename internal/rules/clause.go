package rules

import (
	"fmt"
	"strings"
)

type RuleError struct {
	Code    string
	Message string
	Hint    string
	Cause   error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

// Clause is a comma-separated rule clause: VERB[,field...].
type Clause struct {
	Verb   string   // upper-cased
	Fields []string // fields after the verb, trimmed
}

// Arg returns the i-th field after the verb, or "".
func (c Clause) Arg(i int) string {
	if i < 0 || i >= len(c.Fields) {
		return ""
	}
	return c.Fields[i]
}

// Args joins the fields back with commas.
func (c Clause) Args() string { return strings.Join(c.Fields, ",") }

// HasOption reports whether opt appears as a field (case-insensitive).
func (c Clause) HasOption(opt string) bool {
	for _, f := range c.Fields {
		if strings.EqualFold(f, opt) {
			return true
		}
	}
	return false
}

// ParseClause splits one clause line. Only the shape is checked: the verb
// may be unknown, so callers decide what to do with unsupported verbs.
func ParseClause(line string) (Clause, error) {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return Clause{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is empty"}
	}
	if strings.HasPrefix(line, "#") {
		return Clause{}, &RuleError{Code: "RULE_PARSE_ERROR", Message: "rule line is comment"}
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if parts[0] == "" {
		return Clause{}, &RuleError{
			Code:    "RULE_PARSE_ERROR",
			Message: "规则类型不能为空",
			Hint:    "expected: VERB,VALUE[,...]",
		}
	}
	return Clause{Verb: strings.ToUpper(parts[0]), Fields: parts[1:]}, nil
}
