package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewAddCmd(env **config.Env) *cobra.Command {
	var (
		title string
		asDir bool
	)

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Add a document or directory",
		Long: `Add a document (or, with --dir, a directory) at the given node path. The
parent must exist. Documents get a Markdown file under docs/ with a front
matter block.

Examples:
  wdtp add about --title "About me"
  wdtp add posts --dir --title "Posts"
  wdtp add posts/hello-world`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				parentPath, name := splitNodePath(args[0])
				parent, err := lookup(p, parentPath)
				if err != nil {
					return err
				}

				var n *tree.Node
				if asDir {
					n, err = p.AddDirectory(parent, name, title)
				} else {
					n, err = p.AddDocument(parent, name, title)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s\n", n.Kind, displayPath(n))
				if n.Kind == tree.KindDocument {
					fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", p.SourceFile(n))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title of the new node")
	cmd.Flags().BoolVarP(&asDir, "dir", "d", false, "Add a directory instead of a document")

	return cmd
}

func NewRemoveCmd(env **config.Env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <path>...",
		Aliases: []string{"remove"},
		Short:   "Remove documents or directories with their files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				for _, arg := range args {
					n, err := lookup(p, arg)
					if err != nil {
						return err
					}
					if err := p.Remove(n); err != nil {
						return fmt.Errorf("remove %s: %w", arg, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", arg)
				}
				return nil
			})
		},
	}
}
