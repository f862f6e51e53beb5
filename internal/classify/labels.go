// Package classify normalizes provider labels and applies keyword rules.
package classify

import "sort"

// labelTable is the closed mapping from provider label ids to normalized
// labels. Ids not listed here are dropped.
var labelTable = map[string]string{
	"CATEGORY_PROMOTIONS": "promotions",
	"CATEGORY_SOCIAL":     "social",
	"CATEGORY_UPDATES":    "updates",
	"DRAFT":               "draft",
	"SENT":                "sent",
	"TRASH":               "trash",
	"STARRED":             "starred",
	"INBOX":               "inbox",
}

// Provider label ids that drive record flags rather than labels.
const (
	LabelUnread  = "UNREAD"
	LabelStarred = "STARRED"
)

// MapLabels returns the normalized labels for the given provider label ids,
// in input order with duplicates removed.
func MapLabels(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		l, ok := labelTable[id]
		if !ok || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// Vocabulary returns every label MapLabels can produce, sorted.
func Vocabulary() []string {
	out := make([]string, 0, len(labelTable))
	for _, l := range labelTable {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// HasLabelID reports whether ids contains id.
func HasLabelID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
