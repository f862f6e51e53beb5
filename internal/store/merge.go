package store

import (
	"time"

	"github.com/nhle/mailsync/internal/model"
)

// Merge folds a freshly fetched window into prev and returns the new
// snapshot and the ids seen for the first time.
//
// New records come first (fetch order, IsNew set), then records already
// known and fetched again (fetched copy wins, IsNew cleared), then every
// other stored record unchanged. Replies and enrichment only exist
// locally, so they carry over onto the fetched copy. LastSync becomes now
// unless it is already later.
//
// Merge is deterministic. Merging the same window a second time reports no
// new ids and yields the same records in the same order; only the IsNew
// flags of the first pass are cleared.
func Merge(prev Snapshot, fetched []model.Message, now time.Time) (Snapshot, []string) {
	known := make(map[string]int, len(prev.Emails))
	for i, m := range prev.Emails {
		if _, dup := known[m.ID]; !dup {
			known[m.ID] = i
		}
	}

	var (
		newRecs  []model.Message
		retained []model.Message
		newIDs   []string
		inWindow = make(map[string]bool, len(fetched))
	)
	for _, f := range fetched {
		if f.ID == "" || inWindow[f.ID] {
			continue
		}
		inWindow[f.ID] = true

		rec := f.Clone()
		if rec.Replies == nil {
			rec.Replies = []model.Reply{}
		}
		if i, ok := known[f.ID]; ok {
			old := prev.Emails[i]
			rec.IsNew = false
			rec.Replies = append(rec.Replies[:0], old.Replies...)
			if old.AISummary != nil {
				s := *old.AISummary
				rec.AISummary = &s
			}
			rec.SmartReply = old.SmartReply
			retained = append(retained, rec)
			continue
		}
		rec.IsNew = true
		newRecs = append(newRecs, rec)
		newIDs = append(newIDs, f.ID)
	}

	out := Snapshot{Emails: make([]model.Message, 0, len(newRecs)+len(prev.Emails))}
	out.Emails = append(out.Emails, newRecs...)
	out.Emails = append(out.Emails, retained...)

	emitted := make(map[string]bool, len(prev.Emails))
	for _, m := range prev.Emails {
		if inWindow[m.ID] || emitted[m.ID] {
			continue
		}
		emitted[m.ID] = true
		out.Emails = append(out.Emails, m.Clone())
	}

	last := now.UTC()
	if prev.LastSync != nil && prev.LastSync.After(last) {
		last = *prev.LastSync
	}
	out.LastSync = &last

	return out, newIDs
}
