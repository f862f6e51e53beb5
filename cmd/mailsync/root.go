package main

import (
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/model"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "mailsync",
		Short:         "Sync a mailbox into a local record store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to the config file")

	root.AddCommand(
		newServeCmd(opts),
		newSyncCmd(opts),
		newStatusCmd(opts),
		newRulesCmd(opts),
		newReplyCmd(opts),
		newSendCmd(opts),
		newAckCmd(opts),
		newSettingsCmd(opts),
		newCredentialCmd(),
		newConfigCmd(opts),
	)
	return root
}
