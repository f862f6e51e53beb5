package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/credential"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Store mailbox credentials in the system keyring",
		Long: "Store mailbox credentials in the system keyring.\n\n" +
			"Gmail reads its OAuth token JSON from the key named by gmail.token_key.\n" +
			"IMAP reads its password from imap:<username>.",
	}

	set := &cobra.Command{
		Use:   "set <key> [value]",
		Short: "Store a credential; prompts when value is omitted",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value string
			if len(args) == 2 {
				value = args[1]
			} else {
				form := huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Value for " + args[0]).
							EchoMode(huh.EchoModePassword).
							Value(&value).
							Validate(validateRequired("Value")),
					),
				)
				if err := form.Run(); err != nil {
					return err
				}
			}
			if err := credential.Set(args[0], strings.TrimSpace(value)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", args[0])
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}
