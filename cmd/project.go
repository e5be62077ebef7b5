package cmd

import (
	"fmt"
	"strings"

	"github.com/grovetools/wdtp/cmd/config"
	"github.com/grovetools/wdtp/pkg/project"
	"github.com/grovetools/wdtp/pkg/tree"
)

// withProject opens the project named by --project (or found in the working
// directory), runs fn and closes it again. The stored window geometry is kept.
func withProject(env **config.Env, fn func(p *project.Project) error) error {
	e := *env
	path, err := config.ProjectPath()
	if err != nil {
		return err
	}
	res, err := e.Manager.Open(path)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	if res.Delegated {
		return nil
	}

	p := res.Project
	runErr := fn(p)
	if err := e.Manager.Close(p.Tree().Settings.WindowGeometry); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// lookup resolves a node path as shown by "wdtp tree". "/" and "" are the root.
func lookup(p *project.Project, nodePath string) (*tree.Node, error) {
	n := p.Tree().FindByPath(nodePath)
	if n == nil {
		return nil, fmt.Errorf("no document or directory at %q", nodePath)
	}
	return n, nil
}

// splitNodePath splits "posts/hello" into its parent path and leaf name.
func splitNodePath(nodePath string) (string, string) {
	nodePath = strings.Trim(nodePath, "/")
	i := strings.LastIndex(nodePath, "/")
	if i < 0 {
		return "", nodePath
	}
	return nodePath[:i], nodePath[i+1:]
}

func displayPath(n *tree.Node) string {
	if n.IsRoot() {
		return "/"
	}
	return tree.ResolvePath(n)
}
