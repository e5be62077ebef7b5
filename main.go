package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd"
	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

var env *config.Env

func main() {
	rootCmd := &cobra.Command{
		Use:           "wdtp",
		Short:         "Organize Markdown documents into a static HTML site",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	config.AddGlobalFlags(rootCmd)
	cobra.OnInitialize(config.InitConfig)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// This runs once before any subcommand
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		env, err = config.InitEnv()
		return err
	}
	defer func() {
		if env != nil {
			if err := env.Close(); err != nil {
				env.Logger.WithError(err).Warn("Failed to close environment")
			}
		}
	}()

	// Add subcommands
	rootCmd.AddCommand(cmd.NewNewCmd(&env))
	rootCmd.AddCommand(cmd.NewOpenCmd(&env))
	rootCmd.AddCommand(cmd.NewInfoCmd(&env))
	rootCmd.AddCommand(cmd.NewRecentCmd(&env))
	rootCmd.AddCommand(cmd.NewTreeCmd(&env))
	rootCmd.AddCommand(cmd.NewAddCmd(&env))
	rootCmd.AddCommand(cmd.NewRemoveCmd(&env))
	rootCmd.AddCommand(cmd.NewMoveCmd(&env))
	rootCmd.AddCommand(cmd.NewRenameCmd(&env))
	rootCmd.AddCommand(cmd.NewEditCmd(&env))
	rootCmd.AddCommand(cmd.NewSortCmd(&env))
	rootCmd.AddCommand(cmd.NewSelectCmd(&env))
	rootCmd.AddCommand(cmd.NewGenerateCmd(&env))
	rootCmd.AddCommand(cmd.NewPackCmd(&env))
	rootCmd.AddCommand(cmd.NewWatchCmd(&env))
	rootCmd.AddCommand(cmd.NewSearchCmd(&env))
	rootCmd.AddCommand(cmd.NewFindCmd(&env))
	rootCmd.AddCommand(cmd.NewVersionCmd())

	err := rootCmd.Execute()
	if err != nil {
		if env != nil {
			_ = env.Close()
			env = nil
		}
		// Exit code 2 for a bad project or argument, 1 for I/O failures.
		if wdtperr.IsStructural(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
