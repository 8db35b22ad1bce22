// webmemoryctl is a small operator CLI for blocklist management and
// store inspection, talking directly to the same on-disk image the
// server uses rather than going through the JSON-RPC tool surface.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"webmemcore/internal/config"
	"webmemcore/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webmemoryctl",
		Short: "Operator CLI for the webmemcore knowledge store",
	}
	root.AddCommand(newStatsCmd(), newBlocklistCmd())
	return root
}

func openStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(ctx, cfg.Storage.DBPath, false, nil)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print document/vector/session/blocklist/KG-queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.CollectStats(ctx)
			if err != nil {
				return err
			}
			color.Cyan("documents:       %d", stats.DocumentCount)
			color.Cyan("vectors:         %d", stats.VectorCount)
			color.Cyan("sessions:        %d", stats.SessionCount)
			color.Cyan("blocked domains: %d", stats.BlockedCount)
			color.Cyan("pending KG rows: %d", stats.PendingKG)
			return nil
		},
	}
}

func newBlocklistCmd() *cobra.Command {
	blocklist := &cobra.Command{
		Use:   "blocklist",
		Short: "Manage the domain blocklist",
	}
	blocklist.AddCommand(newBlocklistListCmd(), newBlocklistAddCmd(), newBlocklistRemoveCmd())
	return blocklist
}

func newBlocklistListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List blocklist patterns, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			patterns, err := st.ListBlockedPatterns(ctx)
			if err != nil {
				return err
			}
			for _, p := range patterns {
				fmt.Printf("%-30s %s\n", p.Pattern, p.Description)
			}
			return nil
		},
	}
}

func newBlocklistAddCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "add <pattern>",
		Short: "Add a blocklist pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := st.AddBlockedDomain(ctx, args[0], description); err != nil {
				return err
			}
			color.Green("added %s", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "human-readable reason for the block")
	return cmd
}

func newBlocklistRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <pattern> <keyword>",
		Short: "Remove a blocklist pattern, authorised by the configured removal keyword",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, cfg, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RemoveBlockedDomain(ctx, args[0], args[1], cfg.Blocklist.RemovalKeyword); err != nil {
				return err
			}
			color.Green("removed %s", args[0])
			return nil
		},
	}
}
