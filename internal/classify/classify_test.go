package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mailsync/internal/model"
)

func TestMapLabelsClosedVocabulary(t *testing.T) {
	in := []string{"INBOX", "UNREAD", "CATEGORY_PERSONAL", "Label_123", "STARRED", "INBOX", "CATEGORY_UPDATES"}

	got := MapLabels(in)

	assert.Equal(t, []string{"inbox", "starred", "updates"}, got)

	vocab := make(map[string]bool)
	for _, l := range Vocabulary() {
		vocab[l] = true
	}
	for _, l := range got {
		assert.True(t, vocab[l], "%q outside vocabulary", l)
	}
}

func TestMapLabelsFullTable(t *testing.T) {
	got := MapLabels([]string{
		"CATEGORY_PROMOTIONS", "CATEGORY_SOCIAL", "CATEGORY_UPDATES",
		"DRAFT", "SENT", "TRASH", "STARRED", "INBOX",
	})
	assert.ElementsMatch(t, Vocabulary(), got)
	assert.Len(t, got, 8)
}

func TestCategorizeScenario(t *testing.T) {
	rules := model.RuleSet{Rules: []model.CategoryRule{
		{Category: "Work", Keywords: []string{"meeting", "deadline"}},
	}}

	got := Categorize("Reminder: project deadline tomorrow", "", "", rules)

	assert.Equal(t, []string{"work"}, got)
}

func TestCategorizeSubstringAndCase(t *testing.T) {
	rules := model.RuleSet{Rules: []model.CategoryRule{
		{Category: "Bills", Keywords: []string{"BILL"}},
		{Category: "Shopping", Keywords: []string{"cart"}},
		{Category: "Travel", Keywords: []string{"flight"}},
	}}

	got := Categorize("Your billing statement", "items in your Cartography book", "", rules)

	assert.ElementsMatch(t, []string{"bills", "shopping"}, got)
}

func TestCategorizeSearchesSnippet(t *testing.T) {
	rules := model.RuleSet{Rules: []model.CategoryRule{{Category: "Work", Keywords: []string{"report"}}}}
	assert.Equal(t, []string{"work"}, Categorize("", "", "quarterly Report attached", rules))
}

func TestCategorizeMonotonicUnderKeywordAddition(t *testing.T) {
	texts := []string{
		"meeting at noon",
		"your invoice is due",
		"nothing interesting",
		"package shipped",
	}
	before := model.DefaultRuleSet()
	after, err := before.Merge(model.CategoryRule{Category: "work", Keywords: []string{"noon", "package"}})
	assert.NoError(t, err)

	for _, text := range texts {
		old := Categorize(text, "", "", before)
		now := Categorize(text, "", "", after)
		for _, c := range old {
			assert.Contains(t, now, c, "text %q lost category %q", text, c)
		}
	}
}

func TestRecategorizeReplacesOnlyRuleLabels(t *testing.T) {
	records := []model.Message{
		{ID: "1", Subject: "team meeting", Labels: []string{"inbox", "work", "starred"}},
		{ID: "2", Subject: "invoice", Labels: []string{"work", "promotions"}},
	}
	rules := model.RuleSet{Rules: []model.CategoryRule{
		{Category: "Work", Keywords: []string{"meeting"}},
		{Category: "Bills", Keywords: []string{"invoice"}},
	}}

	Recategorize(records, rules)

	assert.ElementsMatch(t, []string{"inbox", "work", "starred"}, records[0].Labels)
	assert.ElementsMatch(t, []string{"promotions", "bills"}, records[1].Labels)
}

func TestRemoveLabelTouchesOnlyThatLabel(t *testing.T) {
	records := []model.Message{
		{ID: "1", Labels: []string{"inbox", "work"}},
		{ID: "2", Labels: []string{"workshop", "bills"}},
		{ID: "3", Labels: nil},
	}

	n := RemoveLabel(records, "work")

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"inbox"}, records[0].Labels)
	assert.Equal(t, []string{"workshop", "bills"}, records[1].Labels)
	assert.Empty(t, records[2].Labels)
}
