// Package project holds the open-project context: a project file, its tree,
// the sorter that keeps the tree ordered and the generator that renders it.
package project

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/grovetools/wdtp/pkg/markdown"
	"github.com/grovetools/wdtp/pkg/site"
	"github.com/grovetools/wdtp/pkg/sorter"
	"github.com/grovetools/wdtp/pkg/store"
	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// Recents records opened project files.
type Recents interface {
	Add(path string) error
}

// Spawner opens a project in another process.
type Spawner interface {
	Spawn(projectPath string) error
}

// ExecSpawner re-executes the running binary with "open <path>".
type ExecSpawner struct{}

// Spawn starts the new process and returns without waiting for it.
func (ExecSpawner) Spawn(projectPath string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	cmd := exec.Command(exe, "open", projectPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

// styleSheeter is implemented by converters that need a stylesheet in site/add-in/.
type styleSheeter interface {
	StyleSheet() (string, error)
}

// OpenResult describes what Open did.
type OpenResult struct {
	Path      string // Project file after unpacking
	Project   *Project
	Delegated bool // Another process was asked to open Path
}

// Manager opens, creates and closes projects. At most one project is open
// per manager.
type Manager struct {
	fs          afero.Fs
	converter   site.Converter
	recents     Recents
	spawner     Spawner
	view        sorter.ExpansionView
	progress    site.ProgressFunc
	owner       func() string
	treeOptions []tree.Option
	logger      *logrus.Entry

	current *Project
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem. The default is the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithConverter sets the Markdown converter used for generation.
func WithConverter(c site.Converter) Option {
	return func(m *Manager) {
		m.converter = c
	}
}

// WithRecents records every opened project in r.
func WithRecents(r Recents) Option {
	return func(m *Manager) {
		m.recents = r
	}
}

// WithSpawner replaces the process used to open a second project.
func WithSpawner(s Spawner) Option {
	return func(m *Manager) {
		m.spawner = s
	}
}

// WithView attaches an expansion view to every opened project's sorter.
func WithView(v sorter.ExpansionView) Option {
	return func(m *Manager) {
		m.view = v
	}
}

// WithProgress registers a generation progress callback.
func WithProgress(fn site.ProgressFunc) Option {
	return func(m *Manager) {
		m.progress = fn
	}
}

// WithOwner overrides how the owner of new projects is determined.
func WithOwner(owner func() string) Option {
	return func(m *Manager) {
		m.owner = owner
	}
}

// WithTreeOptions passes options to every tree the manager loads or creates.
func WithTreeOptions(options ...tree.Option) Option {
	return func(m *Manager) {
		m.treeOptions = append(m.treeOptions, options...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager returns a manager with no open project.
func NewManager(options ...Option) *Manager {
	m := &Manager{
		fs:      afero.NewOsFs(),
		spawner: ExecSpawner{},
		owner:   currentUser,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		m.logger = logrus.NewEntry(l)
	}
	if m.converter == nil {
		m.converter = markdown.New(markdown.Options{})
	}
	return m
}

// Current returns the open project, or nil.
func (m *Manager) Current() *Project {
	return m.current
}

// Open opens the project file or packaged project at path. When a project
// is already open, the path is handed to the spawner instead and the result
// reports Delegated.
func (m *Manager) Open(path string) (OpenResult, error) {
	logger := m.logger.WithField("component", "project")

	if err := store.CheckAccess(m.fs, path); err != nil {
		return OpenResult{}, err
	}

	projectPath := path
	if store.IsPackage(path) {
		unpacked, err := store.Unpack(m.fs, path)
		if err != nil {
			return OpenResult{}, err
		}
		logger.WithField("package", path).Debug("Unpacked project")
		projectPath = unpacked
	}

	if m.current != nil {
		logger.WithField("path", projectPath).Info("Project already open, delegating to a new process")
		if err := m.spawner.Spawn(projectPath); err != nil {
			return OpenResult{}, fmt.Errorf("open %s in a new process: %w", projectPath, err)
		}
		return OpenResult{Path: projectPath, Delegated: true}, nil
	}

	st := store.New(m.fs, projectPath, store.WithLogger(m.logger))
	t, err := st.Load(m.treeOptions...)
	if err != nil {
		return OpenResult{}, err
	}

	p := &Project{
		fs:     m.fs,
		store:  st,
		tree:   t,
		logger: logger.WithField("project", projectPath),
	}
	p.sorter = sorter.New(t, m.fs, st.Dir(),
		sorter.WithSaver(st),
		sorter.WithView(m.view),
		sorter.WithLogger(m.logger),
	)
	if _, err := p.sorter.SortAll(); err != nil {
		return OpenResult{}, fmt.Errorf("sort %s: %w", projectPath, err)
	}
	genOptions := []site.Option{site.WithLogger(m.logger)}
	if m.progress != nil {
		genOptions = append(genOptions, site.WithProgress(m.progress))
	}
	p.generator = site.New(m.fs, st.Dir(), t, m.converter, genOptions...)

	p.selected = t.FindByIdentity(t.Settings.IdentityOfLastSelected)
	if p.selected == nil {
		p.selected = t.Root
	}

	m.current = p
	if m.recents != nil {
		if err := m.recents.Add(projectPath); err != nil {
			logger.WithError(err).Warn("Could not record recent project")
		}
	}
	logger.WithFields(logrus.Fields{
		"path":  projectPath,
		"nodes": t.Len(),
	}).Debug("Project opened")
	return OpenResult{Path: projectPath, Project: p}, nil
}

// Close stores geometry in the settings and saves the project. When the
// save fails the project stays open.
func (m *Manager) Close(geometry string) error {
	if m.current == nil {
		return nil
	}
	p := m.current
	previous := p.tree.Settings.WindowGeometry
	p.tree.Settings.WindowGeometry = geometry
	if err := p.Save(); err != nil {
		p.tree.Settings.WindowGeometry = previous
		return fmt.Errorf("close project: %w", err)
	}
	m.current = nil
	return nil
}

// Create writes a new project file at path, its directory scaffold and a
// stylesheet, then opens it. The extension is forced to .wdtp. An existing
// file is only replaced when overwrite is set. An empty title is derived
// from the file name.
func (m *Manager) Create(path, title string, overwrite bool) (OpenResult, error) {
	if ext := filepath.Ext(path); !strings.EqualFold(ext, tree.ProjectExt) {
		path = strings.TrimSuffix(path, ext) + tree.ProjectExt
	}
	exists, err := afero.Exists(m.fs, path)
	if err != nil {
		return OpenResult{}, fmt.Errorf("check %s: %w", path, err)
	}
	if exists && !overwrite {
		return OpenResult{}, fmt.Errorf("%w: %s", wdtperr.ErrAlreadyExists, path)
	}

	if strings.TrimSpace(title) == "" {
		title = defaultTitle(path)
	}
	t := tree.New(title, m.treeOptions...)
	t.Owner = m.owner()
	t.Root.NeedsRegeneration = true

	dir := filepath.Dir(path)
	for _, sub := range []string{tree.DocsDir, tree.SiteDir, tree.AddInDir, tree.ThemesDir} {
		if err := m.fs.MkdirAll(filepath.Join(dir, filepath.FromSlash(sub)), 0o755); err != nil {
			return OpenResult{}, fmt.Errorf("create %s: %w", sub, err)
		}
	}
	if err := m.writeStyleSheet(filepath.Join(dir, filepath.FromSlash(tree.AddInDir), "style.css")); err != nil {
		return OpenResult{}, err
	}

	if err := store.New(m.fs, path, store.WithLogger(m.logger)).Save(t); err != nil {
		return OpenResult{}, err
	}
	m.logger.WithField("component", "project").WithField("path", path).Info("Project created")
	return m.Open(path)
}

func (m *Manager) writeStyleSheet(target string) error {
	ss, ok := m.converter.(styleSheeter)
	if !ok {
		return nil
	}
	if exists, _ := afero.Exists(m.fs, target); exists {
		return nil
	}
	css, err := ss.StyleSheet()
	if err != nil {
		return fmt.Errorf("build stylesheet: %w", err)
	}
	return afero.WriteFile(m.fs, target, []byte(css), 0o644)
}

// defaultTitle turns "my-travel_notes.wdtp" into "My Travel Notes".
func defaultTitle(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return cases.Title(language.Und).String(strings.Join(strings.Fields(name), " "))
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
