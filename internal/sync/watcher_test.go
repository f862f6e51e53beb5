package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/model"
)

func TestRulesWatcherReappliesEditedRules(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.mailbox.push(raw("A", "Boarding pass", "gate 12", "INBOX"))
	h.svc.Sync(ctx)

	w := NewRulesWatcher(h.svc, filepath.Join(h.dir, "template.json"), quietLogger())
	w.debounce = 20 * time.Millisecond
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	rs, err := model.DefaultRuleSet().Merge(model.CategoryRule{Category: "Travel", Keywords: []string{"boarding"}})
	require.NoError(t, err)

	// Keep writing until the watcher has picked the edit up; the first
	// write can land before the watch is registered.
	require.Eventually(t, func() bool {
		if err := SaveRules(filepath.Join(h.dir, "template.json"), rs); err != nil {
			return false
		}
		time.Sleep(50 * time.Millisecond)
		snap, err := h.store.Load(ctx)
		return err == nil && len(snap.Emails) == 1 && snap.Emails[0].HasLabel("travel")
	}, 3*time.Second, 100*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
