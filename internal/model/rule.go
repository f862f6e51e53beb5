package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is returned when a rule edit carries an empty category or
// no usable keywords. Nothing is applied when it is returned.
var ErrInvalidRule = errors.New("invalid rule")

// CategoryRule maps a category to the keywords that select it.
// Category identity and keyword matching are case-insensitive.
type CategoryRule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// RuleSet is the ordered list of category rules.
type RuleSet struct {
	Rules []CategoryRule `json:"rules"`
}

// DefaultRuleSet returns the rules written when no rules document exists.
func DefaultRuleSet() RuleSet {
	return RuleSet{Rules: []CategoryRule{
		{Category: "Work", Keywords: []string{"meeting", "project", "deadline", "report", "presentation"}},
		{Category: "Bills", Keywords: []string{"invoice", "payment", "bill", "due", "subscription"}},
		{Category: "Shopping", Keywords: []string{"order", "shipped", "delivery", "purchase", "cart"}},
	}}
}

// Label returns the normalized label a rule's category produces.
func (r CategoryRule) Label() string {
	return strings.ToLower(strings.TrimSpace(r.Category))
}

// Validate normalizes the rule in place: the category is trimmed, blank
// keywords are dropped, and duplicates (case-insensitive) collapse to the
// first spelling. It returns ErrInvalidRule when nothing usable remains.
func (r *CategoryRule) Validate() error {
	r.Category = strings.TrimSpace(r.Category)
	if r.Category == "" {
		return fmt.Errorf("%w: category is required", ErrInvalidRule)
	}

	r.Keywords = unionKeywords(nil, r.Keywords)
	if len(r.Keywords) == 0 {
		return fmt.Errorf("%w: category %q needs at least one keyword", ErrInvalidRule, r.Category)
	}
	return nil
}

// Merge folds rule into the set. An unseen category is appended; an
// existing one (case-insensitive) gets its keywords unioned. The receiver is
// not modified.
func (rs RuleSet) Merge(rule CategoryRule) (RuleSet, error) {
	if err := rule.Validate(); err != nil {
		return rs, err
	}

	out := rs.Clone()
	for i := range out.Rules {
		if out.Rules[i].Label() == rule.Label() {
			out.Rules[i].Keywords = unionKeywords(out.Rules[i].Keywords, rule.Keywords)
			return out, nil
		}
	}
	out.Rules = append(out.Rules, rule)
	return out, nil
}

// Delete returns a copy of the set without category (case-insensitive).
func (rs RuleSet) Delete(category string) RuleSet {
	label := strings.ToLower(strings.TrimSpace(category))
	out := RuleSet{Rules: make([]CategoryRule, 0, len(rs.Rules))}
	for _, r := range rs.Rules {
		if r.Label() == label {
			continue
		}
		out.Rules = append(out.Rules, CategoryRule{
			Category: r.Category,
			Keywords: append([]string(nil), r.Keywords...),
		})
	}
	return out
}

// Labels returns the set of labels the rules can produce.
func (rs RuleSet) Labels() map[string]bool {
	labels := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		if l := r.Label(); l != "" {
			labels[l] = true
		}
	}
	return labels
}

// Clone returns a deep copy of the set.
func (rs RuleSet) Clone() RuleSet {
	out := RuleSet{Rules: make([]CategoryRule, len(rs.Rules))}
	for i, r := range rs.Rules {
		out.Rules[i] = CategoryRule{
			Category: r.Category,
			Keywords: append([]string(nil), r.Keywords...),
		}
	}
	return out
}

func unionKeywords(dst, add []string) []string {
	seen := make(map[string]bool, len(dst)+len(add))
	for _, k := range dst {
		seen[strings.ToLower(k)] = true
	}
	for _, k := range add {
		k = strings.TrimSpace(k)
		if k == "" || seen[strings.ToLower(k)] {
			continue
		}
		seen[strings.ToLower(k)] = true
		dst = append(dst, k)
	}
	return dst
}
