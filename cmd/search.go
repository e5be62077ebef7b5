package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/search"
)

func NewSearchCmd(env **config.Env) *cobra.Command {
	var searchLimit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents",
		Long: `Search the titles, keywords and content of every document in the project.
The index is rebuilt from docs/ on every search.

Examples:
  wdtp search "goroutines"
  wdtp search travel japan --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return withProject(env, func(p *project.Project) error {
				indexDir := filepath.Join(config.DataDir(), "index")
				if err := os.MkdirAll(indexDir, 0755); err != nil {
					return fmt.Errorf("create index dir: %w", err)
				}
				idx, err := search.NewIndex(filepath.Join(indexDir, p.Tree().Root.Identity+".db"))
				if err != nil {
					return fmt.Errorf("open index: %w", err)
				}
				defer idx.Close()

				count, err := idx.IndexProject(p.Tree(), p.Fs(), p.Dir())
				if err != nil {
					return err
				}
				(*env).Logger.WithField("documents", count).Debug("Indexed project")

				results, err := idx.Search(query, searchLimit)
				if err != nil {
					return err
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No results found")
					return nil
				}

				fmt.Fprintf(cmd.OutOrStdout(), "Found %d results:\n\n", len(results))
				for i, r := range results {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, r.Title)
					fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", r.Path)
					if r.Snippet != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", r.Snippet)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results")

	return cmd
}

func NewFindCmd(env **config.Env) *cobra.Command {
	var (
		from     string
		backward bool
		restart  bool
	)

	cmd := &cobra.Command{
		Use:   "find <keyword>",
		Short: "Select the next document containing a keyword",
		Long: `Walk the project tree from the selected node and select the next document
whose source contains the keyword, ignoring case. Run it again to continue.

Examples:
  wdtp find todo
  wdtp find todo --backward
  wdtp find todo --restart      # Start at the top of the tree`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyword := strings.Join(args, " ")
			return withProject(env, func(p *project.Project) error {
				start := p.Selected()
				if restart {
					start = nil
				}
				if from != "" {
					n, err := lookup(p, from)
					if err != nil {
						return err
					}
					start = n
				}

				found := p.Find(keyword, start, !backward)
				if found == nil {
					fmt.Fprintf(cmd.OutOrStdout(), "No further document contains %q\n", keyword)
					return nil
				}
				if err := p.Select(found); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), displayPath(found))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start after this node instead of the selection")
	cmd.Flags().BoolVarP(&backward, "backward", "b", false, "Search towards the top of the tree")
	cmd.Flags().BoolVar(&restart, "restart", false, "Search the whole tree from the top")

	return cmd
}
