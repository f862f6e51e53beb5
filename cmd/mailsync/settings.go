package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/model"
)

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change feature flags",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the feature flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			s, err := model.LoadSettings(cfg.Paths.Settings)
			if err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <flag> <true|false>",
		Short: "Change a feature flag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			s, err := model.LoadSettings(cfg.Paths.Settings)
			if err != nil {
				return err
			}
			if err := s.Set(args[0], value); err != nil {
				return err
			}
			if err := model.SaveSettings(cfg.Paths.Settings, s); err != nil {
				return err
			}
			printSettings(cmd, s)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func printSettings(cmd *cobra.Command, s model.Settings) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "emailSummarization   %t\n", s.EmailSummarization)
	fmt.Fprintf(out, "aiAutoCategorization %t\n", s.AIAutoCategorization)
	fmt.Fprintf(out, "smartReplyGeneration %t\n", s.SmartReplyGeneration)
}
