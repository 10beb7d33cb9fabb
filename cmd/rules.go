package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/taintscope/internal/rules"
)

// newRulesCmd groups the rule catalogue inspection commands.
func newRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate detection rule catalogues",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Lists the active rules, including any configured user catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := loadRuleSet(viper.GetString("rules.path"))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range rs.Rules {
				fmt.Fprintf(out, "%-22s %-8s %s\n", r.ID, r.Severity, r.Title)
			}
			fmt.Fprintf(out, "\n%d rule(s)\n", len(rs.Rules))
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate <catalogue.yaml>",
		Short: "Validates a rule catalogue file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rules.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d valid rule(s)\n", args[0], len(rs.Rules))
			return nil
		},
	}

	rulesCmd.AddCommand(listCmd, validateCmd)
	return rulesCmd
}

func init() {
	rootCmd.AddCommand(newRulesCmd())
}
