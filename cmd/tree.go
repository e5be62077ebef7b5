package cmd

import (
	"fmt"

	"github.com/disiqueira/gotree/v3"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewTreeCmd(env **config.Env) *cobra.Command {
	var (
		showTitles bool
		showSizes  bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Show the project tree in its current order",
		Long: `Show the documents and directories of the project in the order the site
lists them. Nodes marked with * need regenerating; > marks the selection.

Examples:
  wdtp tree
  wdtp tree --titles --sizes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				fmt.Fprint(cmd.OutOrStdout(), renderTree(p, showTitles, showSizes))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showTitles, "titles", false, "Show titles next to names")
	cmd.Flags().BoolVar(&showSizes, "sizes", false, "Show document sizes")

	return cmd
}

func renderTree(p *project.Project, titles, sizes bool) string {
	label := func(n *tree.Node) string {
		s := n.Name
		if n.IsRoot() {
			s = n.Title
		} else if n.Kind == tree.KindDirectory {
			s += "/"
		}
		if titles && !n.IsRoot() && n.Title != "" && n.Title != n.Name {
			s += fmt.Sprintf(" %q", n.Title)
		}
		if sizes && n.Kind == tree.KindDocument {
			if info, err := p.Fs().Stat(p.SourceFile(n)); err == nil {
				s += " [" + humanize.Bytes(uint64(info.Size())) + "]"
			} else {
				s += " [missing]"
			}
		}
		if n.NeedsRegeneration {
			s += " *"
		}
		if n == p.Selected() {
			s = "> " + s
		}
		return s
	}

	root := gotree.New(label(p.Tree().Root))
	var add func(parent gotree.Tree, dir *tree.Node)
	add = func(parent gotree.Tree, dir *tree.Node) {
		for _, c := range dir.Children() {
			branch := parent.Add(label(c))
			if c.IsContainer() {
				add(branch, c)
			}
		}
	}
	add(root, p.Tree().Root)
	return root.Print()
}
