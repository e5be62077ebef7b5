package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

func NewWatchCmd(env **config.Env) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate pages while documents are edited",
		Long: `Watch docs/ and regenerate a page whenever its Markdown file is written,
e.g. by an external editor. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := (*env).Logger.WithField("component", "watch")
			return withProject(env, func(p *project.Project) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return watchDocs(ctx, p, debounce, logger, cmd.OutOrStdout())
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Wait this long after the last change before generating")

	return cmd
}

// watchDocs runs until ctx is done. Events are handled on this goroutine
// only, so the project sees a single mutator.
func watchDocs(ctx context.Context, p *project.Project, debounce time.Duration, logger *logrus.Entry, out io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close watcher")
		}
	}()

	docs := filepath.Join(p.Dir(), tree.DocsDir)
	err = filepath.Walk(docs, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", docs, err)
	}
	fmt.Fprintf(out, "Watching %s\n", docs)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watcher.Add(event.Name); err != nil {
						logger.WithError(err).WithField("dir", event.Name).Warn("Cannot watch new directory")
					}
					continue
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			n := p.NodeForSource(event.Name)
			if n == nil {
				logger.WithField("file", event.Name).Debug("Ignoring file outside the project tree")
				continue
			}
			p.Tree().Touch(n)
			pending = true
			timer.Reset(debounce)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			report, err := p.Generate()
			printReport(out, p, report)
			if err != nil {
				logger.WithError(err).Error("Failed to save project")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Watcher error")
		}
	}
}
