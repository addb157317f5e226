package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vncsmyrnk/curation/internal/config"
)

const programName = "curationctl"

var (
	globalFlags = struct {
		debug bool
	}{}
	configFile string
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Operate a curation ledger",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if globalFlags.debug {
			cfg.LogLevel = "debug"
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(listsCommand())
	rootCmd.AddCommand(reconcileCommand())
	rootCmd.AddCommand(tokenCommand())
	rootCmd.AddCommand(requestsCommand())
	rootCmd.AddCommand(balanceCommand())
	return rootCmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}
