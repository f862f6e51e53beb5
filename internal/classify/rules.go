package classify

import (
	"strings"

	"github.com/nhle/mailsync/internal/model"
)

// Categorize returns the lower-cased category of every rule with at least
// one keyword occurring as a substring of subject, body and snippet joined
// by spaces. Matching is case-insensitive and not tokenized.
func Categorize(subject, body, snippet string, rules model.RuleSet) []string {
	text := strings.ToLower(subject + " " + body + " " + snippet)

	var out []string
	for _, r := range rules.Rules {
		label := r.Label()
		if label == "" {
			continue
		}
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(text, kw) {
				out = model.UnionLabels(out, label)
				break
			}
		}
	}
	return out
}

// Recategorize re-evaluates rules against every record. Labels produced by
// the rule set are replaced with the fresh result; every other label is
// kept. Records are modified in place.
func Recategorize(records []model.Message, rules model.RuleSet) {
	ruleLabels := rules.Labels()
	for i := range records {
		r := &records[i]
		kept := make([]string, 0, len(r.Labels))
		for _, l := range r.Labels {
			if !ruleLabels[l] {
				kept = append(kept, l)
			}
		}
		r.Labels = model.UnionLabels(kept, Categorize(r.Subject, r.Body, r.Snippet, rules)...)
	}
}

// RemoveLabel deletes label from every record in place and returns the
// number of records changed.
func RemoveLabel(records []model.Message, label string) int {
	changed := 0
	for i := range records {
		r := &records[i]
		kept := r.Labels[:0:0]
		for _, l := range r.Labels {
			if l != label {
				kept = append(kept, l)
			}
		}
		if len(kept) != len(r.Labels) {
			r.Labels = kept
			changed++
		}
	}
	return changed
}
