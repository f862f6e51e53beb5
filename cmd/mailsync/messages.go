package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/source"
)

func newReplyCmd(opts *rootOptions) *cobra.Command {
	var tone string

	cmd := &cobra.Command{
		Use:   "reply <id> <text...>",
		Short: "Save a reply draft on a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			reply, err := a.svc.SaveReply(cmd.Context(), args[0], strings.Join(args[1:], " "), tone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s reply at %s.\n", reply.Tone, reply.Timestamp)
			return nil
		},
	}
	cmd.Flags().StringVar(&tone, "tone", "", "reply tone (default Neutral)")
	return cmd
}

func newSendCmd(opts *rootOptions) *cobra.Command {
	var msg source.Outgoing

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message and record it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := msg.Validate(); err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts.configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			rec, err := a.svc.Send(cmd.Context(), msg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s.\n", rec.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&msg.To, "to", "", "recipient address")
	cmd.Flags().StringVar(&msg.Subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&msg.Body, "body", "", "HTML body")
	cmd.Flags().StringVar(&msg.ThreadID, "thread", "", "thread to reply in")
	return cmd
}

func newAckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <id>",
		Short: "Clear the new flag of a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.svc.Acknowledge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %s.\n", args[0])
			return nil
		},
	}
}
