package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/theme"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store counts and the latest records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.svc.Records(cmd.Context())
			if err != nil {
				return err
			}
			renderStatus(cmd.OutOrStdout(), snap.Emails, snap.LastSync, limit)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of records to list")
	return cmd
}

func renderStatus(w io.Writer, records []model.Message, lastSync *time.Time, limit int) {
	counts := model.CategoryCounts(records)

	synced := "never"
	if lastSync != nil {
		synced = lastSync.Local().Format(time.RFC1123)
	}

	summary := []string{
		fmt.Sprintf("Records: %d   Unread: %d   Starred: %d   New: %d",
			counts.All, counts.Unread, counts.Starred, counts.New),
		theme.MutedStyle.Render("Last sync: " + synced),
	}
	if len(counts.Labels) > 0 {
		var parts []string
		for _, c := range counts.Labels {
			parts = append(parts, theme.LabelStyle(c.Label).Render(c.Label)+fmt.Sprintf(" %d", c.Count))
		}
		summary = append(summary, "Labels: "+strings.Join(parts, "  "))
	}

	fmt.Fprintln(w, theme.HeaderStyle.Render("mailsync"))
	fmt.Fprintln(w, theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, summary...)))

	entries := model.Digest(records, limit)
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, e := range entries {
		badge := "  "
		if records[i].IsNew {
			badge = theme.NewBadgeStyle.Render("● ")
		}
		fmt.Fprintf(w, "%s%s  %s  %s  %s\n",
			badge,
			theme.MutedStyle.Render(fmt.Sprintf("%-6s", e.Time)),
			model.Truncate(e.Sender, 32),
			theme.ToneStyle(e.Tone).Render("["+e.Tone+"]"),
			model.Truncate(e.Summary, 80),
		)
		fmt.Fprintf(w, "   %s\n", theme.MutedStyle.Render(e.ID))
	}
}
