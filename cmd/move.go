package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
)

func NewMoveCmd(env **config.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mv <path> <directory>",
		Aliases: []string{"move"},
		Short:   "Move a document or directory into another directory",
		Long: `Move a node, together with its Markdown files, into another directory.
Use / for the project root.

Examples:
  wdtp mv drafts/hello posts
  wdtp mv posts/old-news /`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				n, err := lookup(p, args[0])
				if err != nil {
					return err
				}
				dest, err := lookup(p, args[1])
				if err != nil {
					return err
				}
				if err := p.Move(n, dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", args[0], displayPath(n))
				return nil
			})
		},
	}
	return cmd
}

func NewRenameCmd(env **config.Env) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "rename <path> [name]",
		Short: "Rename a node or change its title",
		Long: `Rename a document or directory and its files, or change its title with
--title. Use / with --title to retitle the project.

Examples:
  wdtp rename posts/hello greeting
  wdtp rename posts/hello --title "Hello, World"
  wdtp rename / --title "My Blog"`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && !cmd.Flags().Changed("title") {
				return fmt.Errorf("give a new name or --title")
			}
			return withProject(env, func(p *project.Project) error {
				n, err := lookup(p, args[0])
				if err != nil {
					return err
				}
				if len(args) == 2 {
					if err := p.Rename(n, args[1]); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("title") {
					if err := p.Retitle(n, title); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", displayPath(n))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")

	return cmd
}
