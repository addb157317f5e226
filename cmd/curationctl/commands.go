package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vncsmyrnk/curation/internal/app"
	"github.com/vncsmyrnk/curation/internal/config"
	"github.com/vncsmyrnk/curation/internal/core/services"
	"github.com/vncsmyrnk/curation/internal/logging"
)

// withNode opens the ledger for one command and closes it afterwards.
func withNode(cmd *cobra.Command, fn func(node *app.App) error) error {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		return errors.New("no config found in context")
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel, programName)

	node, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer node.Close()
	return fn(node)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func listsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lists",
		Short: "Print every indexed list, highest total first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(node *app.App) error {
				lists, err := node.Lists.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), lists)
			})
		},
	}
}

func reconcileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Index list records missing from the list index",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(node *app.App) error {
				report, err := node.Reconcile.Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func tokenCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <account>",
		Short: "Issue a session token for a wallet account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			token, err := services.NewSessionService(cfg.JWTSecret, ttl).Issue(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func requestsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "requests",
		Short: "Print decryption requests still waiting for the oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(node *app.App) error {
				pending, err := node.Settlement.PendingRequests(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), pending)
			})
		},
	}
}

func balanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account>",
		Short: "Print the unclaimed reward, paid-out wallet and house balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNode(cmd, func(node *app.App) error {
				reward, err := node.Settlement.RewardBalance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				wallet, err := node.Wallet.WalletBalance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				house, err := node.Settlement.HouseBalance(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"account": args[0],
					"reward":  reward,
					"wallet":  wallet,
					"house":   house,
				})
			})
		},
	}
}
