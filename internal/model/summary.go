package model

import "sort"

// CategoryCount is the number of records carrying a label.
type CategoryCount struct {
	Label string
	Count int
}

// Counts summarizes a record list for status output.
type Counts struct {
	All     int
	Unread  int
	Starred int
	New     int

	// Labels is sorted by descending count, then label.
	Labels []CategoryCount
}

// CategoryCounts tallies records by state and by label.
func CategoryCounts(records []Message) Counts {
	c := Counts{All: len(records)}
	byLabel := make(map[string]int)

	for _, r := range records {
		if r.Unread {
			c.Unread++
		}
		if r.Starred {
			c.Starred++
		}
		if r.IsNew {
			c.New++
		}
		for _, l := range r.Labels {
			byLabel[l]++
		}
	}

	for l, n := range byLabel {
		c.Labels = append(c.Labels, CategoryCount{Label: l, Count: n})
	}
	sort.Slice(c.Labels, func(i, j int) bool {
		if c.Labels[i].Count != c.Labels[j].Count {
			return c.Labels[i].Count > c.Labels[j].Count
		}
		return c.Labels[i].Label < c.Labels[j].Label
	})
	return c
}

// DigestEntry is a one-line summary of a record.
type DigestEntry struct {
	ID      string
	Sender  string
	Time    string
	Tone    string
	Summary string
}

// Digest returns up to n entries from the head of records. Tone falls back
// to DefaultTone and Summary to the snippet when no enrichment exists yet.
func Digest(records []Message, n int) []DigestEntry {
	if n > len(records) {
		n = len(records)
	}
	if n < 0 {
		n = 0
	}
	out := make([]DigestEntry, 0, n)
	for _, r := range records[:n] {
		e := DigestEntry{
			ID:      r.ID,
			Sender:  r.Sender,
			Time:    r.ReceivedAt,
			Tone:    DefaultTone,
			Summary: r.Snippet,
		}
		if r.AISummary != nil {
			if r.AISummary.Tone != "" {
				e.Tone = r.AISummary.Tone
			}
			if r.AISummary.Summary != "" {
				e.Summary = r.AISummary.Summary
			}
		}
		out = append(out, e)
	}
	return out
}
