package site

import (
	"embed"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"

	"github.com/grovetools/wdtp/pkg/tree"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

// ArticleTemplate is the file name of the document page template inside a theme.
const ArticleTemplate = "article.html"

// Link is a titled relative reference.
type Link struct {
	Title string
	Href  string
}

// Entry is one child listed on an index page.
type Entry struct {
	Title       string
	Description string
	Href        string
	IsDir       bool
	Modified    string
}

// ProjectInfo describes the project a page belongs to.
type ProjectInfo struct {
	Title       string
	Description string
	Owner       string
}

// Page is the data handed to the article and index templates.
type Page struct {
	Project     ProjectInfo
	Title       string
	Description string
	Keywords    []string
	Created     string
	Modified    string
	Path        string
	Root        string // Relative prefix from the page to the site root
	RenderMode  string
	IsRoot      bool
	Breadcrumbs []Link
	Entries     []Entry
	Content     template.HTML
}

// themes resolves templates under themes/<renderMode>/ and falls back to the
// built-in ones. Parsed templates are cached for the lifetime of a pass.
type themes struct {
	fs       afero.Fs
	dir      string
	settings tree.Settings
	cache    map[string]*template.Template
}

func newThemes(fs afero.Fs, projectDir string, settings tree.Settings) *themes {
	return &themes{
		fs:       fs,
		dir:      filepath.Join(projectDir, tree.ThemesDir),
		settings: settings,
		cache:    make(map[string]*template.Template),
	}
}

func (th *themes) article() (*template.Template, error) {
	return th.load(ArticleTemplate, ArticleTemplate)
}

func (th *themes) index() (*template.Template, error) {
	name := th.settings.TemplateFile
	if name == "" {
		name = tree.DefaultTemplateFile
	}
	return th.load(name, "index.html")
}

func (th *themes) load(name, builtin string) (*template.Template, error) {
	key := builtin + "|" + name
	if tpl, ok := th.cache[key]; ok {
		return tpl, nil
	}

	mode := th.settings.RenderMode
	if mode == "" {
		mode = tree.DefaultRenderMode
	}
	var (
		src    []byte
		origin string
	)
	custom := filepath.Join(th.dir, mode, name)
	if data, err := afero.ReadFile(th.fs, custom); err == nil {
		src, origin = data, custom
	} else {
		data, err := builtinTemplates.ReadFile("templates/" + builtin)
		if err != nil {
			return nil, fmt.Errorf("no template %q for render mode %q", name, mode)
		}
		src, origin = data, "builtin:"+builtin
	}

	tpl, err := template.New(name).Funcs(sprig.FuncMap()).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", origin, err)
	}
	th.cache[key] = tpl
	return tpl, nil
}
