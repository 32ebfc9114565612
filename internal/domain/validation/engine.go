package validation

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Engine evaluates the active rules for a field type against a raw value.
// Rules run in a fixed order: required, then pattern, then range. A required
// violation on an empty value short-circuits; otherwise every remaining rule
// is evaluated and all violations are returned together.
type Engine struct {
	rules Repository

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func NewEngine(rules Repository) *Engine {
	return &Engine{rules: rules, patterns: make(map[string]*regexp.Regexp)}
}

var ruleOrder = map[string]int{RuleRequired: 0, RulePattern: 1, RuleRange: 2}

// Validate returns nil when the value passes every active rule.
func (e *Engine) Validate(ctx context.Context, fieldTypeID, raw string) ([]Violation, error) {
	rules, err := e.rules.ListActiveByFieldType(ctx, fieldTypeID)
	if err != nil {
		return nil, fmt.Errorf("load validation rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, nil
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return ruleOrder[rules[i].Type] < ruleOrder[rules[j].Type]
	})

	value := strings.TrimSpace(raw)
	var violations []Violation
	for _, r := range rules {
		v, violated := e.check(r, value)
		if !violated {
			continue
		}
		violations = append(violations, v)
		// An empty required value makes pattern and range checks meaningless.
		if r.Type == RuleRequired && value == "" {
			return violations, nil
		}
	}
	return violations, nil
}

func (e *Engine) check(r *Rule, value string) (Violation, bool) {
	switch r.Type {
	case RuleRequired:
		if value == "" {
			return e.violation(r, "value is required"), true
		}
	case RulePattern:
		re, err := e.pattern(r.Expression)
		if err != nil {
			return e.violation(r, fmt.Sprintf("invalid pattern %q", r.Expression)), true
		}
		if value != "" && !re.MatchString(value) {
			return e.violation(r, fmt.Sprintf("value %q does not match pattern", value)), true
		}
	case RuleRange:
		if value == "" {
			return Violation{}, false
		}
		ok, err := inRange(r.Expression, value)
		if err != nil {
			return e.violation(r, err.Error()), true
		}
		if !ok {
			return e.violation(r, fmt.Sprintf("value %q outside range %s", value, r.Expression)), true
		}
	}
	return Violation{}, false
}

func (e *Engine) violation(r *Rule, fallback string) Violation {
	msg := r.Message
	if msg == "" {
		msg = fallback
	}
	return Violation{Rule: r.Name, Message: msg}
}

func (e *Engine) pattern(expr string) (*regexp.Regexp, error) {
	e.mu.RLock()
	re, ok := e.patterns[expr]
	e.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.patterns[expr] = re
	e.mu.Unlock()
	return re, nil
}

// inRange checks a numeric value against a "min:max" expression. Either
// bound may be omitted ("0:" means at least zero).
func inRange(expr, value string) (bool, error) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false, fmt.Errorf("value %q is not numeric", value)
	}

	lo, hi, ok := strings.Cut(expr, ":")
	if !ok {
		return false, fmt.Errorf("range expression %q must be min:max", expr)
	}
	if lo = strings.TrimSpace(lo); lo != "" {
		min, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return false, fmt.Errorf("range expression %q has a non-numeric lower bound", expr)
		}
		if n < min {
			return false, nil
		}
	}
	if hi = strings.TrimSpace(hi); hi != "" {
		max, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return false, fmt.Errorf("range expression %q has a non-numeric upper bound", expr)
		}
		if n > max {
			return false, nil
		}
	}
	return true, nil
}
