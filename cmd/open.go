package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewOpenCmd(env **config.Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <path>",
		Short: "Open a project or packaged project",
		Long: `Open a project file (.wdtp) or a packaged project (.wpck) and record it in
the recent projects list. A packaged project is unpacked next to the archive.

Examples:
  wdtp open ~/blog/blog.wdtp
  wdtp open ~/Downloads/shared.wpck     # Unpacks to ~/Downloads/shared/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := *env

			res, err := e.Manager.Open(args[0])
			if err != nil {
				return err
			}
			if res.Delegated {
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s in a new process\n", res.Path)
				return nil
			}
			p := res.Project
			printInfo(cmd.OutOrStdout(), p)
			return e.Manager.Close(p.Tree().Settings.WindowGeometry)
		},
	}
	return cmd
}

func NewInfoCmd(env **config.Env) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show project details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				printInfo(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func printInfo(w io.Writer, p *project.Project) {
	t := p.Tree()
	st := t.Settings

	var size uint64
	dirty := 0
	for _, n := range t.Documents() {
		if info, err := p.Fs().Stat(p.SourceFile(n)); err == nil {
			size += uint64(info.Size())
		}
	}
	_ = tree.Walk(t.Root, func(n *tree.Node) error {
		if n.NeedsRegeneration {
			dirty++
		}
		return nil
	})

	fmt.Fprintf(w, "Project:     %s\n", t.Root.Title)
	fmt.Fprintf(w, "File:        %s\n", p.Path())
	if t.Root.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", t.Root.Description)
	}
	if t.Owner != "" {
		fmt.Fprintf(w, "Owner:       %s\n", t.Owner)
	}
	fmt.Fprintf(w, "Contents:    %d documents in %d directories, %s\n",
		len(t.Documents()), len(t.Directories())-1, humanize.Bytes(size))
	fmt.Fprintf(w, "Created:     %s\n", ago(t.Root.Created))
	fmt.Fprintf(w, "Pending:     %d pages need generating\n", dirty)
	order := "ascending"
	if !st.Ascending {
		order = "descending"
	}
	fmt.Fprintf(w, "Order:       %s, %s, directories first: %t\n", st.OrderKey, order, st.DirectoriesFirst)
	fmt.Fprintf(w, "Render:      %s (%s)\n", st.RenderMode, st.TemplateFile)
	fmt.Fprintf(w, "Selected:    %s\n", displayPath(p.Selected()))
}

// ago renders a node timestamp relative to now, or as-is when it does not parse.
func ago(ts string) string {
	t, err := time.ParseInLocation(tree.TimestampLayout, ts, time.Local)
	if err != nil {
		return ts
	}
	return fmt.Sprintf("%s (%s)", ts, humanize.Time(t))
}
