package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"

	"github.com/grovetools/wdtp/pkg/frontmatter"
	"github.com/grovetools/wdtp/pkg/site"
	"github.com/grovetools/wdtp/pkg/sorter"
	"github.com/grovetools/wdtp/pkg/store"
	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// Project is one open project.
type Project struct {
	fs        afero.Fs
	store     *store.Store
	tree      *tree.Tree
	sorter    *sorter.Sorter
	generator *site.Generator
	selected  *tree.Node
	logger    *logrus.Entry
}

// Path returns the project file.
func (p *Project) Path() string { return p.store.Path() }

// Dir returns the project directory.
func (p *Project) Dir() string { return p.store.Dir() }

// Tree returns the project tree.
func (p *Project) Tree() *tree.Tree { return p.tree }

// Fs returns the filesystem the project lives on.
func (p *Project) Fs() afero.Fs { return p.fs }

// Selected returns the selected node. It is never nil.
func (p *Project) Selected() *tree.Node { return p.selected }

// Save persists the tree.
func (p *Project) Save() error {
	return p.store.Save(p.tree)
}

// SourceFile returns the absolute Markdown file or docs directory of n.
func (p *Project) SourceFile(n *tree.Node) string {
	return filepath.Join(p.Dir(), filepath.FromSlash(tree.SourcePath(n)))
}

// OutputFile returns the absolute generated artifact of n.
func (p *Project) OutputFile(n *tree.Node) string {
	return filepath.Join(p.Dir(), filepath.FromSlash(site.OutputPath(n)))
}

// ReadDocument returns the Markdown source of document n.
func (p *Project) ReadDocument(n *tree.Node) (string, error) {
	if n.Kind != tree.KindDocument {
		return "", fmt.Errorf("%w: %q is not a document", wdtperr.ErrInvalidParent, tree.ResolvePath(n))
	}
	data, err := afero.ReadFile(p.fs, p.SourceFile(n))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", wdtperr.ErrSourceMissing, tree.SourcePath(n))
		}
		return "", err
	}
	return string(data), nil
}

// AddDocument creates a document named name under parent, writes its initial
// source, sorts parent and saves the project. An existing source file is kept.
func (p *Project) AddDocument(parent *tree.Node, name, title string) (*tree.Node, error) {
	if err := checkDocumentName(name); err != nil {
		return nil, err
	}
	n, err := p.tree.CreateNode(tree.KindDocument, parent, name)
	if err != nil {
		return nil, err
	}
	n.Title = title

	src := p.SourceFile(n)
	if err := p.writeInitialSource(n, src); err != nil {
		_ = p.tree.RemoveNode(n)
		return nil, fmt.Errorf("create %s: %w", tree.SourcePath(n), err)
	}
	return n, p.settle(parent)
}

func (p *Project) writeInitialSource(n *tree.Node, src string) error {
	if err := p.fs.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		return err
	}
	if exists, _ := afero.Exists(p.fs, src); exists {
		return nil
	}
	content := frontmatter.BuildContent(&frontmatter.Frontmatter{
		Title:   n.DisplayTitle(),
		Created: n.Created,
	}, "")
	return afero.WriteFile(p.fs, src, []byte(content), 0o644)
}

// AddDirectory creates a directory named name under parent, sorts parent and
// saves the project.
func (p *Project) AddDirectory(parent *tree.Node, name, title string) (*tree.Node, error) {
	n, err := p.tree.CreateNode(tree.KindDirectory, parent, name)
	if err != nil {
		return nil, err
	}
	n.Title = title

	if err := p.fs.MkdirAll(p.SourceFile(n), 0o755); err != nil {
		_ = p.tree.RemoveNode(n)
		return nil, fmt.Errorf("create %s: %w", tree.SourcePath(n), err)
	}
	return n, p.settle(parent)
}

// Remove deletes n's source and generated files, detaches n and saves. The
// parent is selected when the selection was inside n.
func (p *Project) Remove(n *tree.Node) error {
	if n == nil || n.IsRoot() {
		return fmt.Errorf("%w: the project root cannot be removed", wdtperr.ErrInvalidParent)
	}
	if p.tree.FindByIdentity(n.Identity) != n {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	if err := p.removeFiles(n); err != nil {
		return err
	}

	path := tree.ResolvePath(n)
	parent := n.Parent()
	selectionInside := false
	for s := p.selected; s != nil; s = s.Parent() {
		if s == n {
			selectionInside = true
			break
		}
	}
	if err := p.tree.RemoveNode(n); err != nil {
		return err
	}
	if selectionInside {
		p.selected = parent
		p.tree.Settings.IdentityOfLastSelected = parent.Identity
	}
	p.logger.WithField("node", path).Debug("Removed node")
	return p.Save()
}

func (p *Project) removeFiles(n *tree.Node) error {
	src, out := p.SourceFile(n), p.OutputFile(n)
	if n.Kind == tree.KindDirectory {
		out = filepath.Dir(out)
		if err := p.fs.RemoveAll(src); err != nil {
			return fmt.Errorf("remove %s: %w", tree.SourcePath(n), err)
		}
		if err := p.fs.RemoveAll(out); err != nil {
			return fmt.Errorf("remove %s: %w", out, err)
		}
		return nil
	}
	for _, f := range []string{src, out} {
		if err := p.fs.Remove(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

// Rename renames n and its files, sorts its parent and saves.
func (p *Project) Rename(n *tree.Node, name string) error {
	if n != nil && n.Kind == tree.KindDocument {
		if err := checkDocumentName(name); err != nil {
			return err
		}
	}
	oldName, oldModified := "", ""
	if n != nil {
		oldName, oldModified = n.Name, n.Modified
	}
	return p.relocate(n, func() error {
		return p.tree.Rename(n, name)
	}, func() {
		_ = p.tree.Rename(n, oldName)
		n.Modified = oldModified
	})
}

// Move re-parents n together with its files, sorts the new parent and saves.
func (p *Project) Move(n, newParent *tree.Node) error {
	var oldParent *tree.Node
	if n != nil {
		oldParent = n.Parent()
	}
	return p.relocate(n, func() error {
		return p.tree.Move(n, newParent)
	}, func() {
		_ = p.tree.Move(n, oldParent)
		_, _ = p.sorter.SortChildren(oldParent)
	})
}

// relocate applies a path-changing tree edit and moves the source along.
// The edit is undone when the source cannot be moved.
func (p *Project) relocate(n *tree.Node, edit func() error, undo func()) error {
	if n == nil {
		return fmt.Errorf("%w: no node given", wdtperr.ErrInvalidParent)
	}
	oldSrc, oldOut := p.SourceFile(n), p.OutputFile(n)
	if n.Kind == tree.KindDirectory {
		oldOut = filepath.Dir(oldOut)
	}
	if err := edit(); err != nil {
		return err
	}
	newSrc := p.SourceFile(n)
	if oldSrc == newSrc {
		return p.settle(n.Parent())
	}

	if exists, _ := afero.Exists(p.fs, oldSrc); exists {
		if err := p.moveSource(oldSrc, newSrc); err != nil {
			undo()
			return fmt.Errorf("move %s: %w", oldSrc, err)
		}
	}
	if err := p.fs.RemoveAll(oldOut); err != nil {
		p.logger.WithError(err).WithField("path", oldOut).Warn("Could not remove stale output")
	}
	return p.settle(n.Parent())
}

func (p *Project) moveSource(from, to string) error {
	if err := p.fs.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return err
	}
	return p.fs.Rename(from, to)
}

// Retitle changes n's title. Pages show their own title and list their
// children's, so n and its parent need regeneration. Every page shows the
// project title.
func (p *Project) Retitle(n *tree.Node, title string) error {
	if n == nil || p.tree.FindByIdentity(n.Identity) != n {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	n.Title = title
	n.Modified = p.tree.Timestamp()
	if n.IsRoot() {
		tree.MarkDirtyRecursive(n)
		return p.Save()
	}
	tree.MarkDirty(n)
	tree.MarkDirty(n.Parent())
	return p.settle(n.Parent())
}

// SaveDocument replaces the source of document n. Only n needs regeneration
// afterwards.
func (p *Project) SaveDocument(n *tree.Node, content string) error {
	if n == nil || n.Kind != tree.KindDocument {
		return fmt.Errorf("%w: only documents have content", wdtperr.ErrInvalidParent)
	}
	src := p.SourceFile(n)
	if err := p.fs.MkdirAll(filepath.Dir(src), 0o755); err != nil {
		return fmt.Errorf("save %s: %w", tree.SourcePath(n), err)
	}
	if err := afero.WriteFile(p.fs, src, []byte(content), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", tree.SourcePath(n), err)
	}
	p.tree.Touch(n)
	return p.Save()
}

// Select makes n the selected node and persists that choice.
func (p *Project) Select(n *tree.Node) error {
	if n == nil || p.tree.FindByIdentity(n.Identity) != n {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	p.selected = n
	p.tree.Settings.IdentityOfLastSelected = n.Identity
	return p.Save()
}

// UpdateSettings applies next and reorders the tree when the ordering changed.
func (p *Project) UpdateSettings(next tree.Settings) (sorter.ReorderPlan, error) {
	return p.sorter.UpdateSettings(next)
}

// SetView attaches an expansion view to the sorter.
func (p *Project) SetView(v sorter.ExpansionView) {
	p.sorter.SetView(v)
}

// Generate renders the nodes that need regeneration and saves the cleared
// flags. Per-node failures are in the report; the error is the save error.
func (p *Project) Generate() (site.Report, error) {
	report := p.generator.Generate()
	return report, p.Save()
}

// RegenerateAll rebuilds the whole site.
func (p *Project) RegenerateAll() (site.Report, error) {
	report, err := p.generator.RegenerateAll()
	if err != nil {
		return report, err
	}
	return report, p.Save()
}

// NodeForHTML maps a generated file back to its node.
func (p *Project) NodeForHTML(siteFile string) *tree.Node {
	return p.generator.NodeForHTML(siteFile)
}

// NodeForSource maps a file below docs/ back to its document, or returns nil.
func (p *Project) NodeForSource(file string) *tree.Node {
	rel, err := filepath.Rel(filepath.Join(p.Dir(), tree.DocsDir), file)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if strings.HasPrefix(rel, "../") || !strings.HasSuffix(rel, tree.MarkdownExt) {
		return nil
	}
	n := p.tree.FindByPath(strings.TrimSuffix(rel, tree.MarkdownExt))
	if n == nil || n.Kind != tree.KindDocument {
		return nil
	}
	return n
}

// Find returns the next document after from (or the previous one when
// forward is false) in tree order whose source contains keyword, ignoring
// case. A nil from searches the whole tree. It returns nil when nothing matches.
func (p *Project) Find(keyword string, from *tree.Node, forward bool) *tree.Node {
	if keyword == "" {
		return nil
	}
	var rows []*tree.Node
	start := -1
	_ = tree.Walk(p.tree.Root, func(n *tree.Node) error {
		if n == from {
			start = len(rows)
		}
		rows = append(rows, n)
		return nil
	})

	step := 1
	i := start + 1
	if !forward {
		step = -1
		i = start - 1
		if start < 0 {
			i = len(rows) - 1
		}
	}

	fold := cases.Fold()
	needle := fold.String(keyword)
	for ; i >= 0 && i < len(rows); i += step {
		n := rows[i]
		if n.Kind != tree.KindDocument {
			continue
		}
		data, err := afero.ReadFile(p.fs, p.SourceFile(n))
		if err != nil {
			continue
		}
		if strings.Contains(fold.String(string(data)), needle) {
			return n
		}
	}
	return nil
}

// settle sorts dir after a structural edit and saves.
func (p *Project) settle(dir *tree.Node) error {
	if _, err := p.sorter.SortChildren(dir); err != nil {
		return err
	}
	return p.Save()
}

// checkDocumentName rejects names whose page would collide with the
// directory's own index.html.
func checkDocumentName(name string) error {
	if strings.EqualFold(name, "index") {
		return fmt.Errorf("%w: a document cannot be named %q", wdtperr.ErrInvalidParent, name)
	}
	return nil
}
