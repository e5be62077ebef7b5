package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

func NewEditCmd(env **config.Env) *cobra.Command {
	var fromStdin bool

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Edit a document",
		Long: `Open the Markdown source of a document in your editor ($EDITOR or the
editor config key), or replace it with standard input. The document is marked
for regeneration when its content changed.

Examples:
  wdtp edit posts/hello
  cat draft.md | wdtp edit posts/hello --stdin`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProject(env, func(p *project.Project) error {
				n, err := lookup(p, args[0])
				if err != nil {
					return err
				}
				before, err := p.ReadDocument(n)
				if err != nil && !errors.Is(err, wdtperr.ErrSourceMissing) {
					return err
				}

				var after string
				if fromStdin {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return fmt.Errorf("read stdin: %w", err)
					}
					after = string(data)
				} else {
					if err := openInEditor(config.Editor(), p.SourceFile(n)); err != nil {
						return err
					}
					if after, err = p.ReadDocument(n); err != nil {
						return err
					}
				}

				if after == before {
					fmt.Fprintln(cmd.OutOrStdout(), "No changes")
					return nil
				}
				if err := p.SaveDocument(n, after); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", displayPath(n))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Read the new content from stdin")

	return cmd
}

// openInEditor opens a file in the configured editor
func openInEditor(editor, path string) error {
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vim" // fallback
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}
