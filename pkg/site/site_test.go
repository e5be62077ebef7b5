package site

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

const projectDir = "/blog"

// echoConverter wraps each source in a paragraph.
type echoConverter struct {
	calls int
}

func (c *echoConverter) ToHTML(src string, ctx RenderContext) (string, error) {
	c.calls++
	return "<p>" + html.EscapeString(strings.TrimSpace(src)) + "</p>", nil
}

type failingConverter struct{}

func (failingConverter) ToHTML(string, RenderContext) (string, error) {
	return "", errors.New("converter exploded")
}

type fixture struct {
	fs    afero.Fs
	tree  *tree.Tree
	posts *tree.Node
	hello *tree.Node
	about *tree.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	tr := tree.New("Blog",
		tree.WithClock(func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }),
		tree.WithIdentities(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	f := &fixture{fs: afero.NewMemMapFs(), tree: tr}
	var err error
	f.posts, err = tr.CreateNode(tree.KindDirectory, tr.Root, "posts")
	require.NoError(t, err)
	f.hello, err = tr.CreateNode(tree.KindDocument, f.posts, "hello")
	require.NoError(t, err)
	f.hello.Title = "Hello"
	f.about, err = tr.CreateNode(tree.KindDocument, tr.Root, "about")
	require.NoError(t, err)

	f.write(t, "docs/posts/hello.md", "---\ntitle: From front matter\n---\nHello world")
	f.write(t, "docs/about.md", "About me")
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	p := filepath.Join(projectDir, filepath.FromSlash(rel))
	require.NoError(t, f.fs.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(f.fs, p, []byte(content), 0o644))
}

func (f *fixture) read(t *testing.T, rel string) string {
	t.Helper()
	data, err := afero.ReadFile(f.fs, filepath.Join(projectDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) exists(rel string) bool {
	ok, _ := afero.Exists(f.fs, filepath.Join(projectDir, filepath.FromSlash(rel)))
	return ok
}

func (f *fixture) generator(c Converter, options ...Option) *Generator {
	return New(f.fs, projectDir, f.tree, c, options...)
}

func TestOutputPath(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "site/index.html", OutputPath(f.tree.Root))
	assert.Equal(t, "site/posts/index.html", OutputPath(f.posts))
	assert.Equal(t, "site/posts/hello.html", OutputPath(f.hello))
	assert.Equal(t, "site/about.html", OutputPath(f.about))
}

func TestGenerateWritesEveryArtifact(t *testing.T) {
	f := newFixture(t)
	var transitions []string
	g := f.generator(&echoConverter{}, WithProgress(func(n *tree.Node, s State, err error) {
		transitions = append(transitions, tree.ResolvePath(n)+":"+s.String())
	}))

	report := g.Generate()
	require.NoError(t, report.Err())
	assert.Len(t, report.Generated, 4)

	page := f.read(t, "site/posts/hello.html")
	assert.Contains(t, page, "<p>Hello world</p>")
	assert.NotContains(t, page, "From front matter", "front matter is stripped and the node title wins")
	assert.Contains(t, page, `href="../add-in/style.css"`)
	assert.Contains(t, page, `<a href="../index.html">Blog</a>`)

	index := f.read(t, "site/index.html")
	assert.Contains(t, index, `href="posts/index.html"`)
	assert.Contains(t, index, `href="about.html"`)
	assert.Less(t, strings.Index(index, "posts/index.html"), strings.Index(index, "about.html"), "entries follow child order")

	assert.Contains(t, f.read(t, "site/posts/index.html"), `href="hello.html"`)

	assert.Equal(t, []string{
		":generating", ":done",
		"posts:generating", "posts:done",
		"posts/hello:generating", "posts/hello:done",
		"about:generating", "about:done",
	}, transitions, "pre-order, node before children")

	_ = tree.Walk(f.tree.Root, func(n *tree.Node) error {
		assert.False(t, n.NeedsRegeneration, tree.ResolvePath(n))
		return nil
	})
}

func TestIndexLinksEscapeNames(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{"c#sharp", "why?", "note:1", "two words"} {
		_, err := f.tree.CreateNode(tree.KindDocument, f.tree.Root, name)
		require.NoError(t, err)
		f.write(t, "docs/"+name+".md", name)
	}
	_, err := f.tree.CreateNode(tree.KindDirectory, f.tree.Root, "a:b")
	require.NoError(t, err)

	report := f.generator(&echoConverter{}).Generate()
	require.NoError(t, report.Err())

	index := f.read(t, "site/index.html")
	assert.Contains(t, index, `href="c%23sharp.html"`)
	assert.Contains(t, index, `href="why%3F.html"`)
	assert.Contains(t, index, `href="note%3A1.html"`)
	assert.Contains(t, index, `href="two%20words.html"`)
	assert.Contains(t, index, `href="a%3Ab/index.html"`)
	assert.NotContains(t, index, "ZgotmplZ")
	assert.True(t, f.exists("site/note:1.html"))
}

func TestGenerateOnlyDirtyNodes(t *testing.T) {
	f := newFixture(t)
	conv := &echoConverter{}
	g := f.generator(conv)
	require.NoError(t, g.Generate().Err())
	indexBefore := f.read(t, "site/posts/index.html")

	f.write(t, "docs/posts/hello.md", "Edited")
	f.tree.Touch(f.hello)
	assert.False(t, f.posts.NeedsRegeneration)

	conv.calls = 0
	report := g.Generate()
	require.NoError(t, report.Err())
	assert.Equal(t, []*tree.Node{f.hello}, report.Generated)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, StatePending, report.States[f.about.Identity])
	assert.Equal(t, 1, conv.calls)
	assert.Contains(t, f.read(t, "site/posts/hello.html"), "<p>Edited</p>")
	assert.Equal(t, indexBefore, f.read(t, "site/posts/index.html"))
}

func TestMissingSourceFailsOnlyThatNode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.fs.Remove(filepath.Join(projectDir, "docs", "about.md")))

	report := f.generator(&echoConverter{}).Generate()

	require.Len(t, report.Failed, 1)
	assert.Same(t, f.about, report.Failed[0].Node)
	assert.ErrorIs(t, report.Err(), wdtperr.ErrSourceMissing)
	assert.Equal(t, StateFailed, report.States[f.about.Identity])
	assert.True(t, f.about.NeedsRegeneration, "failed node stays dirty")
	assert.False(t, f.hello.NeedsRegeneration)
	assert.True(t, f.exists("site/posts/hello.html"), "the pass continues after a failure")
	assert.False(t, f.exists("site/about.html"))
}

func TestConverterErrorFailsNode(t *testing.T) {
	f := newFixture(t)
	report := f.generator(failingConverter{}).Generate()
	assert.Len(t, report.Failed, 2)
	assert.Len(t, report.Generated, 2, "indexes do not use the converter")
}

func TestRegenerateAllPreservesAddIn(t *testing.T) {
	f := newFixture(t)
	f.write(t, "site/add-in/style.css", "body{}")
	f.write(t, "site/add-in/js/app.js", "1+1")
	f.write(t, "site/stale.html", "old")
	g := f.generator(&echoConverter{})

	report, err := g.RegenerateAll()
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Len(t, report.Generated, 4)

	assert.Equal(t, "body{}", f.read(t, "site/add-in/style.css"))
	assert.Equal(t, "1+1", f.read(t, "site/add-in/js/app.js"))
	assert.False(t, f.exists("site/stale.html"))
	assert.False(t, f.exists(".add-in.preserve"))
	assert.True(t, f.exists("site/posts/hello.html"))
}

func TestRegenerateAllIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.write(t, "site/add-in/style.css", "body{}")
	g := f.generator(&echoConverter{})

	snapshot := func() map[string]string {
		files := map[string]string{}
		require.NoError(t, afero.Walk(f.fs, filepath.Join(projectDir, "site"), func(p string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return err
			}
			data, err := afero.ReadFile(f.fs, p)
			files[p] = string(data)
			return err
		}))
		return files
	}

	_, err := g.RegenerateAll()
	require.NoError(t, err)
	first := snapshot()
	_, err = g.RegenerateAll()
	require.NoError(t, err)
	assert.Equal(t, first, snapshot())
}

type failingRemoveFs struct {
	afero.Fs
}

func (f failingRemoveFs) RemoveAll(p string) error {
	if filepath.Base(p) == "site" {
		return errors.New("device busy")
	}
	return f.Fs.RemoveAll(p)
}

func TestRegenerateAllAbortsWhenWipeFails(t *testing.T) {
	f := newFixture(t)
	f.write(t, "site/add-in/style.css", "body{}")
	f.tree.ClearDirty()
	g := New(failingRemoveFs{f.fs}, projectDir, f.tree, &echoConverter{})

	_, err := g.RegenerateAll()
	require.Error(t, err)
	assert.Equal(t, "body{}", f.read(t, "site/add-in/style.css"))
	assert.False(t, f.exists(".add-in.preserve"))
	assert.False(t, f.exists("site/index.html"), "nothing is generated")
	assert.False(t, f.tree.Root.NeedsRegeneration)
}

func TestCustomTheme(t *testing.T) {
	f := newFixture(t)
	f.tree.Settings.RenderMode = "book"
	f.tree.Settings.TemplateFile = "toc.html"
	f.write(t, "themes/book/toc.html", `<ol>{{ range .Entries }}<li>{{ .Title | upper }}</li>{{ end }}</ol>`)
	f.write(t, "themes/book/article.html", `<main>{{ .Content }}</main>`)

	require.NoError(t, f.generator(&echoConverter{}).Generate().Err())
	assert.Equal(t, "<ol><li>POSTS</li><li>ABOUT</li></ol>", f.read(t, "site/index.html"))
	assert.Equal(t, "<main><p>About me</p></main>", f.read(t, "site/about.html"))
}

func TestBrokenThemeFailsIndexes(t *testing.T) {
	f := newFixture(t)
	f.write(t, "themes/blog/index.html", `{{ .Broken `)
	report := f.generator(&echoConverter{}).Generate()
	assert.Len(t, report.Failed, 2)
}

func TestNodeForHTML(t *testing.T) {
	f := newFixture(t)
	g := f.generator(&echoConverter{})

	assert.Same(t, f.tree.Root, g.NodeForHTML("site/index.html"))
	assert.Same(t, f.posts, g.NodeForHTML("/blog/site/posts/index.html"))
	assert.Same(t, f.hello, g.NodeForHTML("site/posts/hello.html"))
	assert.Same(t, f.about, g.NodeForHTML(filepath.Join(projectDir, "site", "about.html")))
	assert.Nil(t, g.NodeForHTML("site/posts.html"), "directories only map from their index")
	assert.Nil(t, g.NodeForHTML("site/missing.html"))
	assert.Nil(t, g.NodeForHTML("docs/about.md"))
}
