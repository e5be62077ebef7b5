package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
)

func NewRecentCmd(env **config.Env) *cobra.Command {
	var forget string

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		Long: `List the most recently opened projects, newest first. Projects whose file
no longer exists are dropped from the list.

Examples:
  wdtp recent
  wdtp recent --forget ~/old/blog.wdtp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *env

			if forget != "" {
				if err := e.Recents.Remove(forget); err != nil {
					return fmt.Errorf("forget %s: %w", forget, err)
				}
			}

			entries, err := e.Recents.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recent projects")
				return nil
			}
			for i, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s  (%s)\n", i+1, entry.Path, humanize.Time(entry.LastUsed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&forget, "forget", "", "Remove a project from the list")

	return cmd
}
