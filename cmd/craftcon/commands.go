package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/energizer-project/craftcon/internal/cli"
	"github.com/energizer-project/craftcon/internal/client"
	"github.com/energizer-project/craftcon/internal/minecraft"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Open an interactive RCON console",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, opts, err := consoleOptions()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "craftcon v%s, connecting to %s\n", Version, opts.Addr())
		return cli.NewConsole(client.Opener(opts), nil, os.Stdin, cmd.OutOrStdout()).Run(cmd.Context())
	},
}

var execCmd = &cobra.Command{
	Use:   "exec <command...>",
	Short: "Run one console command and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, err := consoleOptions()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		return client.WithSession(ctx, client.Opener(opts), func(s client.Session) error {
			out, err := s.Execute(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(minecraft.StripFormatting(out), "\n"))
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary [player]",
	Short: "Print the server summary, or a player's summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, err := consoleOptions()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		return client.WithSession(ctx, client.Opener(opts), func(s client.Session) error {
			if len(args) == 0 {
				cli.RenderSummary(out, client.ServerQueries, s.ServerSummary(ctx))
				return nil
			}
			summary, err := s.PlayerSummary(ctx, args[0])
			if err != nil {
				return err
			}
			cli.RenderSummary(out, client.PlayerQueries(args[0]), summary)
			return nil
		})
	},
}

var actionCmd = &cobra.Command{
	Use:   "action <plugin> <action> [params...]",
	Short: "Run a plugin action such as \"essentials heal Steve\"",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, opts, err := consoleOptions()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		params := strings.Join(args[2:], " ")
		return client.WithSession(ctx, client.Opener(opts), func(s client.Session) error {
			out, err := s.ResolveAction(ctx, args[0], args[1], params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(minecraft.StripFormatting(out), "\n"))
			return nil
		})
	},
}
