package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewSortCmd(env **config.Env) *cobra.Command {
	var (
		by         string
		descending bool
		dirsFirst  bool
		render     string
		template   string
	)

	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Change the ordering and render settings",
		Long: `Change how siblings are ordered and how the site is rendered. Flags that
are not given keep their current value. Without flags the current settings
are shown.

Order keys: name, title, size, create-time, modify-time. For the two time
keys, ascending lists the most recent first.

Examples:
  wdtp sort --by title
  wdtp sort --by modify-time --desc
  wdtp sort --dirs-first=false
  wdtp sort --render book --template toc.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				next := p.Tree().Settings
				flags := cmd.Flags()
				if flags.Changed("by") {
					key, err := tree.ParseOrderKey(by)
					if err != nil {
						return err
					}
					next.OrderKey = key
				}
				if flags.Changed("desc") {
					next.Ascending = !descending
				}
				if flags.Changed("dirs-first") {
					next.DirectoriesFirst = dirsFirst
				}
				if flags.Changed("render") {
					next.RenderMode = render
				}
				if flags.Changed("template") {
					next.TemplateFile = template
				}

				plan, err := p.UpdateSettings(next)
				if err != nil {
					return err
				}
				st := p.Tree().Settings
				if len(plan.Changed) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "order=%s ascending=%t dirs-first=%t render=%s template=%s\n",
						st.OrderKey, st.Ascending, st.DirectoriesFirst, st.RenderMode, st.TemplateFile)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Changed %s; reordered %d directories\n",
					strings.Join(plan.Changed, ", "), len(plan.Reordered))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", "", "Order key: name, title, size, create-time or modify-time")
	cmd.Flags().BoolVar(&descending, "desc", false, "Reverse the order")
	cmd.Flags().BoolVar(&dirsFirst, "dirs-first", true, "List directories before documents")
	cmd.Flags().StringVar(&render, "render", "", "Render mode, the theme directory under themes/")
	cmd.Flags().StringVar(&template, "template", "", "Template file for index pages")

	return cmd
}

func NewSelectCmd(env **config.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "select [path]",
		Short: "Show or change the selected node",
		Long: `Show the selected node, or select the node at path. The selection is
stored in the project and restored when it is opened again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				if len(args) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), displayPath(p.Selected()))
					return nil
				}
				n, err := lookup(p, args[0])
				if err != nil {
					return err
				}
				if err := p.Select(n); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Selected %s\n", displayPath(n))
				return nil
			})
		},
	}
}
