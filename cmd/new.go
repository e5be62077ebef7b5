package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
)

func NewNewCmd(env **config.Env) *cobra.Command {
	var (
		title string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "new <path>",
		Short: "Create a new project",
		Long: `Create a new project file together with its docs/, site/, site/add-in/
and themes/ directories. The file always gets the .wdtp extension.

Examples:
  wdtp new ~/blog/blog.wdtp                 # Title derived from the file name
  wdtp new ~/blog/blog --title "My Blog"    # Becomes ~/blog/blog.wdtp
  wdtp new ~/blog/blog.wdtp --force         # Replace an existing project file`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *env

			res, err := e.Manager.Create(args[0], title, force)
			if err != nil {
				return err
			}
			if res.Delegated {
				fmt.Fprintf(cmd.OutOrStdout(), "Created %s, opened in a new process\n", res.Path)
				return nil
			}

			p := res.Project
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %q at %s\n", p.Tree().Root.Title, res.Path)
			fmt.Fprintln(cmd.OutOrStdout(), "\nReady to use! Try 'wdtp add <name>' to write your first document.")
			return e.Manager.Close(p.Tree().Settings.WindowGeometry)
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Project title")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing project file")

	return cmd
}
