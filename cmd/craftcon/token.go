package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/energizer-project/craftcon/internal/cli"
	"github.com/energizer-project/craftcon/internal/db"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create <label>",
	Short: "Create an API token and print its secret once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tok, secret, err := store.CreateToken(args[0], tokenRole)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created %s token %q (id %s)\n", tok.Role, tok.Label, tok.ID)
		fmt.Fprintf(out, "Secret (shown only once): %s\n", secret)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List API tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		tokens, err := store.ListTokens()
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(tokens))
		for _, t := range tokens {
			used := "never"
			if t.LastUsedAt != nil {
				used = t.LastUsedAt.Local().Format(time.DateTime)
			}
			state := "active"
			if t.Revoked {
				state = "revoked"
			}
			rows = append(rows, []string{t.ID, t.Label, t.Role, t.CreatedAt.Local().Format(time.DateTime), used, state})
		}
		cli.RenderTable(cmd.OutOrStdout(), []string{"ID", "Label", "Role", "Created", "Last Used", "State"}, rows)
		return nil
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an API token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.RevokeToken(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s\n", args[0])
		return nil
	},
}

func init() {
	tokenCreateCmd.Flags().StringVar(&tokenRole, "role", db.RoleViewer,
		fmt.Sprintf("token role (%s)", strings.Join(db.Roles(), ", ")))
	tokenCmd.AddCommand(tokenCreateCmd, tokenListCmd, tokenRevokeCmd)
}

func openStore() (*db.Database, error) {
	cfg, err := loadConfig(false)
	if err != nil {
		return nil, err
	}
	return db.Open(cfg.GetApplicationData().Security.DatabasePath)
}
