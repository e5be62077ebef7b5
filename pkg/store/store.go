// Package store reads and writes project files.
//
// A project file is a YAML document whose root carries the project marker
// type, the project settings and the nested node hierarchy. Saves are atomic:
// the document is written to a sibling work-in-progress file which then
// replaces the project file.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

const workInProgressSuffix = ".wip"

// projectFile is the root mapping of a project file.
type projectFile struct {
	Type           string       `yaml:"type"`
	Title          string       `yaml:"title"`
	Description    string       `yaml:"description,omitempty"`
	Keywords       string       `yaml:"keywords,omitempty"`
	Owner          string       `yaml:"owner,omitempty"`
	Identity       string       `yaml:"identity"`
	CreateDate     string       `yaml:"createDate,omitempty"`
	ModifyDate     string       `yaml:"modifyDate,omitempty"`
	NeedCreateHTML bool         `yaml:"needCreateHtml"`
	Settings       settingsFile `yaml:"settings"`
	Children       []nodeFile   `yaml:"children,omitempty"`
}

type settingsFile struct {
	Order                      string `yaml:"order"`
	Ascending                  bool   `yaml:"ascending"`
	DirFirst                   bool   `yaml:"dirFirst"`
	ShowWhat                   int    `yaml:"showWhat"`
	Tooltip                    int    `yaml:"tooltip"`
	IdentityOfLastSelectedItem string `yaml:"identityOfLastSelectedItem,omitempty"`
	MainWindowSizeAndPosition  string `yaml:"mainWindowSizeAndPosition,omitempty"`
	Render                     string `yaml:"render"`
	TplFile                    string `yaml:"tplFile"`
}

type nodeFile struct {
	Type           string     `yaml:"type"`
	Name           string     `yaml:"name"`
	Title          string     `yaml:"title,omitempty"`
	Description    string     `yaml:"description,omitempty"`
	Keywords       string     `yaml:"keywords,omitempty"`
	Identity       string     `yaml:"identity"`
	CreateDate     string     `yaml:"createDate,omitempty"`
	ModifyDate     string     `yaml:"modifyDate,omitempty"`
	NeedCreateHTML bool       `yaml:"needCreateHtml"`
	Children       []nodeFile `yaml:"children,omitempty"`
}

// Store persists one project file.
type Store struct {
	fs     afero.Fs
	path   string
	logger *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a store for the project file at path on fs.
func New(fs afero.Fs, path string, options ...Option) *Store {
	s := &Store{fs: fs, path: path}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.logger = logrus.NewEntry(l)
	}
	s.logger = s.logger.WithField("component", "store")
	return s
}

// Path returns the project file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the project directory, the parent of docs/ and site/.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Fs returns the filesystem the store works on.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// CheckAccess returns ErrAccessDenied unless path is an existing, writable regular file.
func CheckAccess(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist", wdtperr.ErrAccessDenied, path)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", wdtperr.ErrAccessDenied, path)
	}
	f, err := fs.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("%w: %s cannot be written to: %v", wdtperr.ErrAccessDenied, path, err)
	}
	return f.Close()
}

// Load reads and decodes the project file.
func (s *Store) Load(options ...tree.Option) (*tree.Tree, error) {
	if err := CheckAccess(s.fs, s.path); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", wdtperr.ErrAccessDenied, s.path, err)
	}
	if isLegacyCompressed(data) {
		s.logger.WithField("path", s.path).Debug("Inflating legacy compressed project file")
		if data, err = inflate(data); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", wdtperr.ErrNotAProject, s.path, err)
		}
	}
	t, err := Decode(data, options...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.logger.WithFields(logrus.Fields{
		"path":  s.path,
		"nodes": t.Len(),
	}).Debug("Project loaded")
	return t, nil
}

// Save encodes t and atomically replaces the project file. On failure the
// previous file is left untouched and the error wraps ErrSaveFailed.
func (s *Store) Save(t *tree.Tree) error {
	data, err := Encode(t)
	if err != nil {
		return fmt.Errorf("%w: %v", wdtperr.ErrSaveFailed, err)
	}

	tempPath := s.path + workInProgressSuffix
	if err := s.writeTemp(tempPath, data); err != nil {
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("%w: %s: %v", wdtperr.ErrSaveFailed, s.path, err)
	}
	if err := s.fs.Rename(tempPath, s.path); err != nil {
		_ = s.fs.Remove(tempPath)
		return fmt.Errorf("%w: %s: %v", wdtperr.ErrSaveFailed, s.path, err)
	}
	s.logger.WithField("path", s.path).Debug("Project saved")
	return nil
}

func (s *Store) writeTemp(path string, data []byte) error {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode serializes t. Children are written in their current order, so the
// output is stable for an unchanged tree.
func Encode(t *tree.Tree) ([]byte, error) {
	root := t.Root
	st := t.Settings
	doc := projectFile{
		Type:           tree.TagProject,
		Title:          root.Title,
		Description:    root.Description,
		Keywords:       root.Keywords,
		Owner:          t.Owner,
		Identity:       root.Identity,
		CreateDate:     root.Created,
		ModifyDate:     root.Modified,
		NeedCreateHTML: root.NeedsRegeneration,
		Settings: settingsFile{
			Order:                      st.OrderKey.String(),
			Ascending:                  st.Ascending,
			DirFirst:                   st.DirectoriesFirst,
			ShowWhat:                   st.ShowWhat,
			Tooltip:                    st.Tooltip,
			IdentityOfLastSelectedItem: st.IdentityOfLastSelected,
			MainWindowSizeAndPosition:  st.WindowGeometry,
			Render:                     st.RenderMode,
			TplFile:                    st.TemplateFile,
		},
		Children: encodeChildren(root),
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode project: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeChildren(n *tree.Node) []nodeFile {
	children := n.Children()
	if len(children) == 0 {
		return nil
	}
	out := make([]nodeFile, 0, len(children))
	for _, c := range children {
		out = append(out, nodeFile{
			Type:           c.Kind.Tag(),
			Name:           c.Name,
			Title:          c.Title,
			Description:    c.Description,
			Keywords:       c.Keywords,
			Identity:       c.Identity,
			CreateDate:     c.Created,
			ModifyDate:     c.Modified,
			NeedCreateHTML: c.NeedsRegeneration,
			Children:       encodeChildren(c),
		})
	}
	return out
}

// Decode parses a project document. Anything that is not a well-formed
// project yields an error wrapping ErrNotAProject.
func Decode(data []byte, options ...tree.Option) (*tree.Tree, error) {
	var doc projectFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", wdtperr.ErrNotAProject, err)
	}
	if doc.Type != tree.TagProject {
		return nil, fmt.Errorf("%w: root type is %q", wdtperr.ErrNotAProject, doc.Type)
	}

	settings, err := decodeSettings(doc.Settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wdtperr.ErrNotAProject, err)
	}

	root := tree.NewNode(tree.KindProject, "")
	root.Title = doc.Title
	root.Description = doc.Description
	root.Keywords = doc.Keywords
	root.Identity = doc.Identity
	root.Created = doc.CreateDate
	root.Modified = doc.ModifyDate
	root.NeedsRegeneration = doc.NeedCreateHTML
	if err := decodeChildren(root, doc.Children); err != nil {
		return nil, err
	}

	t, err := tree.NewWithRoot(root, settings, options...)
	if err != nil {
		if errors.Is(err, wdtperr.ErrNotAProject) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", wdtperr.ErrNotAProject, err)
	}
	t.Owner = doc.Owner
	return t, nil
}

func decodeSettings(sf settingsFile) (tree.Settings, error) {
	st := tree.Settings{
		Ascending:              sf.Ascending,
		DirectoriesFirst:       sf.DirFirst,
		ShowWhat:               sf.ShowWhat,
		Tooltip:                sf.Tooltip,
		IdentityOfLastSelected: sf.IdentityOfLastSelectedItem,
		WindowGeometry:         sf.MainWindowSizeAndPosition,
		RenderMode:             sf.Render,
		TemplateFile:           sf.TplFile,
	}
	if strings.TrimSpace(sf.Order) != "" {
		key, err := parseOrder(sf.Order)
		if err != nil {
			return st, err
		}
		st.OrderKey = key
	}
	if st.RenderMode == "" {
		st.RenderMode = tree.DefaultRenderMode
	}
	if st.TemplateFile == "" {
		st.TemplateFile = tree.DefaultTemplateFile
	}
	return st, nil
}

func decodeChildren(parent *tree.Node, children []nodeFile) error {
	for _, c := range children {
		kind, err := tree.KindFromTag(c.Type)
		if err != nil {
			return fmt.Errorf("%w: %v", wdtperr.ErrNotAProject, err)
		}
		if kind == tree.KindProject {
			return fmt.Errorf("%w: nested project node %q", wdtperr.ErrNotAProject, c.Name)
		}
		n := tree.NewNode(kind, c.Name)
		n.Title = c.Title
		n.Description = c.Description
		n.Keywords = c.Keywords
		n.Identity = c.Identity
		n.Created = c.CreateDate
		n.Modified = c.ModifyDate
		n.NeedsRegeneration = c.NeedCreateHTML
		if err := tree.Attach(parent, n); err != nil {
			return fmt.Errorf("%w: %v", wdtperr.ErrNotAProject, err)
		}
		if len(c.Children) > 0 {
			if kind == tree.KindDocument {
				return fmt.Errorf("%w: document %q has children", wdtperr.ErrNotAProject, c.Name)
			}
			if err := decodeChildren(n, c.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
