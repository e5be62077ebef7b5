package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/site"
	"github.com/grovetools/wdtp/pkg/store"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewGenerateCmd(env **config.Env) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"gen"},
		Short:   "Generate the HTML site",
		Long: `Generate the pages of every document and directory that changed since the
last run. With --all, site/ is rebuilt from scratch; site/add-in/ is kept.

Examples:
  wdtp generate
  wdtp generate --all`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				var (
					report site.Report
					err    error
				)
				if all {
					report, err = p.RegenerateAll()
				} else {
					report, err = p.Generate()
				}
				printReport(cmd.OutOrStdout(), p, report)
				if err != nil {
					return err
				}
				if report.Err() != nil {
					return fmt.Errorf("%d pages failed", len(report.Failed))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Rebuild the whole site")

	return cmd
}

func printReport(w io.Writer, p *project.Project, report site.Report) {
	for _, n := range report.Generated {
		fmt.Fprintf(w, "  wrote %s\n", site.OutputPath(n))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(w, "  failed %s: %v\n", displayPath(f.Node), f.Err)
	}
	fmt.Fprintf(w, "Generated %d pages, %d failed, %d up to date (%s)\n",
		len(report.Generated), len(report.Failed), report.Skipped,
		filepath.Join(p.Dir(), tree.SiteDir))
}

func NewPackCmd(env **config.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "pack <archive>",
		Short: "Package the project into a .wpck archive",
		Long: `Write the project file, docs/, themes/ and site/ into a zip archive that
'wdtp open' can unpack. The archive gets the .wpck extension.

Examples:
  wdtp pack ~/Desktop/blog.wpck`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive := args[0]
			if ext := filepath.Ext(archive); !strings.EqualFold(ext, tree.PackageExt) {
				archive = strings.TrimSuffix(archive, ext) + tree.PackageExt
			}
			return withProject(env, func(p *project.Project) error {
				if err := store.Pack(p.Fs(), p.Path(), archive); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Packed %s into %s\n", p.Tree().Root.Title, archive)
				return nil
			})
		},
	}
}
