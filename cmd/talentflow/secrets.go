package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/FlowNice/job-application-agent/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials stored in the OS keychain",
}

var secretsSetCmd = &cobra.Command{
	Use:       "set <account>",
	Short:     "Store a credential in the OS keychain",
	Long:      "Prompts for the value without echo. Known accounts: " + strings.Join(secrets.Accounts, ", "),
	Args:      cobra.ExactArgs(1),
	ValidArgs: secrets.Accounts,
	RunE:      runSecretsSet,
}

var secretsDeleteCmd = &cobra.Command{
	Use:       "delete <account>",
	Short:     "Remove a credential from the OS keychain",
	Args:      cobra.ExactArgs(1),
	ValidArgs: secrets.Accounts,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := secrets.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s from the keychain\n", args[0])
		return nil
	},
}

func init() {
	secretsCmd.AddCommand(secretsSetCmd, secretsDeleteCmd)
	rootCmd.AddCommand(secretsCmd)
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	account := args[0]
	if !slices.Contains(secrets.Accounts, account) {
		fmt.Printf("warning: %q is not a known account; config will not read it\n", account)
	}

	prompt := promptui.Prompt{
		Label: account,
		Mask:  '*',
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("value must not be empty")
			}
			return nil
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return err
	}

	if err := secrets.Set(account, value); err != nil {
		return err
	}
	fmt.Printf("Stored %s in the keychain (service %q)\n", account, secrets.Service)
	return nil
}
