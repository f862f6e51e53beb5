package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/model"
)

func newRulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage categorization rules",
	}
	cmd.AddCommand(newRulesListCmd(opts), newRulesAddCmd(opts), newRulesDeleteCmd(opts))
	return cmd
}

func newRulesListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			rs, err := a.svc.Rules()
			if err != nil {
				return err
			}
			printRules(cmd, rs)
			return nil
		},
	}
}

func newRulesAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add [category] [keyword...]",
		Short: "Add a category or merge keywords into an existing one",
		Long: "Add a category rule. Keywords may be given as separate arguments or\n" +
			"comma-separated. With no arguments an interactive form is shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := ruleFromArgs(args)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			rs, err := a.svc.AddRule(cmd.Context(), rule)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved rule %q.\n", strings.TrimSpace(rule.Category))
			printRules(cmd, rs)
			return nil
		},
	}
}

func newRulesDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <category>",
		Aliases: []string{"rm"},
		Short:   "Delete a category and strip its label from every record",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			rs, err := a.svc.DeleteRule(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted rule %q.\n", args[0])
			printRules(cmd, rs)
			return nil
		},
	}
}

func ruleFromArgs(args []string) (model.CategoryRule, error) {
	if len(args) == 0 {
		return promptRule()
	}
	if len(args) == 1 {
		return model.CategoryRule{}, fmt.Errorf("%w: at least one keyword is required", model.ErrInvalidRule)
	}
	return model.CategoryRule{Category: args[0], Keywords: splitKeywords(args[1:])}, nil
}

func splitKeywords(args []string) []string {
	var out []string
	for _, a := range args {
		for _, k := range strings.Split(a, ",") {
			if k = strings.TrimSpace(k); k != "" {
				out = append(out, k)
			}
		}
	}
	return out
}

func promptRule() (model.CategoryRule, error) {
	var category, keywords string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Category").
				Description("Label applied to matching messages").
				Placeholder("Travel").
				Value(&category).
				Validate(validateRequired("Category")),
			huh.NewInput().
				Title("Keywords").
				Description("Comma-separated, matched case-insensitively anywhere in the message").
				Placeholder("flight, boarding, itinerary").
				Value(&keywords).
				Validate(validateRequired("Keywords")),
		),
	)
	if err := form.Run(); err != nil {
		return model.CategoryRule{}, err
	}
	return model.CategoryRule{Category: category, Keywords: splitKeywords([]string{keywords})}, nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func printRules(cmd *cobra.Command, rs model.RuleSet) {
	out := cmd.OutOrStdout()
	if len(rs.Rules) == 0 {
		fmt.Fprintln(out, "No rules.")
		return
	}
	for _, r := range rs.Rules {
		fmt.Fprintf(out, "%-16s %s\n", r.Category, strings.Join(r.Keywords, ", "))
	}
}
