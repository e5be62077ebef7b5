// Package site renders a project tree into a static HTML tree below site/.
//
// The output mirrors docs/: a document becomes site/<path>.html, a directory
// becomes site/<path>/index.html and the project root site/index.html. Files
// below site/add-in/ belong to the author and survive full regeneration.
package site

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/grovetools/wdtp/pkg/frontmatter"
	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// RenderContext describes the document being converted.
type RenderContext struct {
	Node     *tree.Node
	Path     string // Resolved node path
	Root     string // Relative prefix from the page to the site root
	Settings tree.Settings
}

// Converter turns Markdown source into an HTML fragment.
type Converter interface {
	ToHTML(src string, ctx RenderContext) (string, error)
}

// State is the generation state of one node within a pass.
type State int

const (
	StatePending State = iota
	StateGenerating
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ProgressFunc is called on every state transition. err is set for StateFailed.
type ProgressFunc func(n *tree.Node, state State, err error)

// Failure records a node whose artifact could not be written.
type Failure struct {
	Node *tree.Node
	Err  error
}

// Report summarizes a generation pass.
type Report struct {
	Generated []*tree.Node
	Failed    []Failure
	Skipped   int
	States    map[string]State // By node identity
}

// Err joins the failures of the pass, nil when every visited node succeeded.
func (r Report) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}

// Generator produces the site of one project.
type Generator struct {
	fs         afero.Fs
	projectDir string
	tree       *tree.Tree
	converter  Converter
	progress   ProgressFunc
	logger     *logrus.Entry
}

// Option configures a Generator.
type Option func(*Generator)

// WithProgress registers a state transition callback.
func WithProgress(fn ProgressFunc) Option {
	return func(g *Generator) {
		g.progress = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New returns a generator for t whose docs/ and site/ live in projectDir on fs.
func New(fs afero.Fs, projectDir string, t *tree.Tree, converter Converter, options ...Option) *Generator {
	g := &Generator{
		fs:         fs,
		projectDir: projectDir,
		tree:       t,
		converter:  converter,
	}
	for _, opt := range options {
		opt(g)
	}
	if g.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		g.logger = logrus.NewEntry(l)
	}
	g.logger = g.logger.WithField("component", "site")
	return g
}

// OutputPath returns the artifact path of n relative to the project directory.
func OutputPath(n *tree.Node) string {
	p := tree.ResolvePath(n)
	switch {
	case n.IsRoot():
		return path.Join(tree.SiteDir, "index.html")
	case n.Kind == tree.KindDirectory:
		return path.Join(tree.SiteDir, p, "index.html")
	default:
		return path.Join(tree.SiteDir, p+".html")
	}
}

// Generate regenerates the nodes marked as needing regeneration.
func (g *Generator) Generate() Report {
	return g.pass(false)
}

// RegenerateAll rebuilds the whole site. site/add-in/ is set aside, site/ is
// wiped and generated again, and the add-in files are put back. A failed wipe
// restores the add-in files and aborts before anything is generated.
func (g *Generator) RegenerateAll() (Report, error) {
	siteDir := g.abs(tree.SiteDir)
	addIn := g.abs(tree.AddInDir)
	stash := g.abs(".add-in.preserve")

	preserved, err := afero.DirExists(g.fs, addIn)
	if err != nil {
		return Report{}, err
	}
	if preserved {
		if err := g.fs.RemoveAll(stash); err != nil {
			return Report{}, fmt.Errorf("clear add-in stash: %w", err)
		}
		if err := copyTree(g.fs, addIn, stash); err != nil {
			_ = g.fs.RemoveAll(stash)
			return Report{}, fmt.Errorf("preserve %s: %w", tree.AddInDir, err)
		}
	}

	restore := func() error {
		if !preserved {
			return nil
		}
		if err := copyTree(g.fs, stash, addIn); err != nil {
			return fmt.Errorf("restore %s: %w", tree.AddInDir, err)
		}
		return g.fs.RemoveAll(stash)
	}

	if err := g.fs.RemoveAll(siteDir); err != nil {
		if rerr := restore(); rerr != nil {
			g.logger.WithError(rerr).Error("Failed to restore add-in files")
		}
		return Report{}, fmt.Errorf("wipe %s: %w", tree.SiteDir, err)
	}
	if err := g.fs.MkdirAll(siteDir, 0o755); err != nil {
		_ = restore()
		return Report{}, fmt.Errorf("create %s: %w", tree.SiteDir, err)
	}

	tree.MarkDirtyRecursive(g.tree.Root)
	report := g.pass(true)

	if err := restore(); err != nil {
		return report, err
	}
	return report, nil
}

func (g *Generator) pass(force bool) Report {
	report := Report{States: make(map[string]State)}
	th := newThemes(g.fs, g.projectDir, g.tree.Settings)

	_ = tree.Walk(g.tree.Root, func(n *tree.Node) error {
		report.States[n.Identity] = StatePending
		if !force && !n.NeedsRegeneration {
			report.Skipped++
			return nil
		}
		tree.MarkDirty(n)
		g.transition(&report, n, StateGenerating, nil)

		if err := g.generateNode(th, n); err != nil {
			report.Failed = append(report.Failed, Failure{Node: n, Err: err})
			g.transition(&report, n, StateFailed, err)
			g.logger.WithError(err).WithField("node", OutputPath(n)).Warn("Generation failed")
			return nil
		}
		n.NeedsRegeneration = false
		report.Generated = append(report.Generated, n)
		g.transition(&report, n, StateDone, nil)
		return nil
	})

	g.logger.WithFields(logrus.Fields{
		"generated": len(report.Generated),
		"failed":    len(report.Failed),
		"skipped":   report.Skipped,
		"forced":    force,
	}).Info("Generation pass finished")
	return report
}

func (g *Generator) transition(r *Report, n *tree.Node, s State, err error) {
	r.States[n.Identity] = s
	if g.progress != nil {
		g.progress(n, s, err)
	}
}

func (g *Generator) generateNode(th *themes, n *tree.Node) error {
	if n.Kind == tree.KindDocument {
		return g.generateDocument(th, n)
	}
	return g.generateIndex(th, n)
}

func (g *Generator) generateDocument(th *themes, n *tree.Node) error {
	src := g.abs(tree.SourcePath(n))
	data, err := afero.ReadFile(g.fs, src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", wdtperr.ErrSourceMissing, tree.SourcePath(n))
		}
		return fmt.Errorf("read %s: %w", tree.SourcePath(n), err)
	}

	fm, body, err := frontmatter.Parse(string(data))
	if err != nil {
		g.logger.WithError(err).WithField("node", tree.ResolvePath(n)).Debug("Ignoring unparseable front matter")
		fm, body = nil, string(data)
	}

	page := g.page(n)
	if fm != nil {
		if strings.TrimSpace(n.Title) == "" && fm.Title != "" {
			page.Title = fm.Title
		}
		if page.Description == "" {
			page.Description = fm.Description
		}
		if len(page.Keywords) == 0 {
			page.Keywords = fm.Keywords
		}
	}

	html, err := g.converter.ToHTML(body, RenderContext{
		Node:     n,
		Path:     tree.ResolvePath(n),
		Root:     page.Root,
		Settings: g.tree.Settings,
	})
	if err != nil {
		return err
	}
	page.Content = template.HTML(html)

	tpl, err := th.article()
	if err != nil {
		return err
	}
	return g.render(tpl, page, OutputPath(n))
}

func (g *Generator) generateIndex(th *themes, n *tree.Node) error {
	page := g.page(n)
	for _, c := range n.Children() {
		e := Entry{
			Title:       c.DisplayTitle(),
			Description: c.Description,
			Modified:    c.Modified,
			IsDir:       c.IsContainer(),
			Href:        linkSegment(c.Name) + ".html",
		}
		if e.IsDir {
			e.Href = linkSegment(c.Name) + "/index.html"
		}
		page.Entries = append(page.Entries, e)
	}

	tpl, err := th.index()
	if err != nil {
		return err
	}
	return g.render(tpl, page, OutputPath(n))
}

// linkSegment escapes a node name for use in a relative link. A colon is
// escaped too so the link is never read as a URL scheme.
func linkSegment(name string) string {
	return strings.ReplaceAll(url.PathEscape(name), ":", "%3A")
}

// page fills the fields shared by articles and indexes.
func (g *Generator) page(n *tree.Node) Page {
	root := g.tree.Root
	p := Page{
		Project: ProjectInfo{
			Title:       root.DisplayTitle(),
			Description: root.Description,
			Owner:       g.tree.Owner,
		},
		Title:       n.DisplayTitle(),
		Description: n.Description,
		Keywords:    frontmatter.SplitKeywords(n.Keywords),
		Created:     n.Created,
		Modified:    n.Modified,
		Path:        tree.ResolvePath(n),
		RenderMode:  g.tree.Settings.RenderMode,
		IsRoot:      n.IsRoot(),
	}

	// Pages of a directory live inside it; a document page sits next to its siblings.
	depth := n.Depth()
	if n.Kind == tree.KindDocument {
		depth--
	}
	p.Root = strings.Repeat("../", depth)

	var ancestors []*tree.Node
	for a := n.Parent(); a != nil; a = a.Parent() {
		ancestors = append([]*tree.Node{a}, ancestors...)
	}
	for _, a := range ancestors {
		p.Breadcrumbs = append(p.Breadcrumbs, Link{
			Title: a.DisplayTitle(),
			Href:  strings.Repeat("../", depth-a.Depth()) + "index.html",
		})
	}
	return p
}

func (g *Generator) render(tpl *template.Template, page Page, rel string) error {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, page); err != nil {
		return fmt.Errorf("render %s: %w", rel, err)
	}
	out := g.abs(rel)
	if err := g.fs.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	if err := afero.WriteFile(g.fs, out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}

// NodeForHTML maps a generated artifact back to its node. siteFile may be
// absolute or relative to the project directory. It returns nil when no node
// produces that file.
func (g *Generator) NodeForHTML(siteFile string) *tree.Node {
	rel := siteFile
	if filepath.IsAbs(siteFile) {
		r, err := filepath.Rel(g.projectDir, siteFile)
		if err != nil {
			return nil
		}
		rel = r
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if !strings.HasPrefix(rel, tree.SiteDir+"/") || !strings.HasSuffix(strings.ToLower(rel), ".html") {
		return nil
	}
	rel = strings.TrimPrefix(rel, tree.SiteDir+"/")
	rel = rel[:len(rel)-len(".html")]

	if rel == "index" || strings.HasSuffix(rel, "/index") {
		dir := g.tree.FindByPath(strings.TrimSuffix(strings.TrimSuffix(rel, "index"), "/"))
		if dir != nil && dir.IsContainer() {
			return dir
		}
		return nil
	}
	if n := g.tree.FindByPath(rel); n != nil && n.Kind == tree.KindDocument {
		return n
	}
	return nil
}

func (g *Generator) abs(rel string) string {
	return filepath.Join(g.projectDir, filepath.FromSlash(rel))
}

// copyTree copies the files below src to dst, creating directories as needed.
func copyTree(fs afero.Fs, src, dst string) error {
	return afero.Walk(fs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return fs.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			return err
		}
		return afero.WriteFile(fs, target, data, info.Mode().Perm())
	})
}
