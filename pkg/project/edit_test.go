package project

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/wdtp/pkg/store"
	"github.com/grovetools/wdtp/pkg/tree"
	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// blogFixture builds root -> posts/hello, about.
func blogFixture(t *testing.T, fs afero.Fs) (*Manager, *Project) {
	t.Helper()
	m, p := createProject(t, fs, "/work/blog.wdtp")
	root := p.Tree().Root
	posts, err := p.AddDirectory(root, "posts", "Posts")
	require.NoError(t, err)
	hello, err := p.AddDocument(posts, "hello", "Hello")
	require.NoError(t, err)
	require.NoError(t, p.SaveDocument(hello, "# Hello\n\nFirst post."))
	about, err := p.AddDocument(root, "about", "About")
	require.NoError(t, err)
	require.NoError(t, p.SaveDocument(about, "About me."))
	return m, p
}

func TestAddDocumentRejectsIndex(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := createProject(t, fs, "/work/blog.wdtp")

	_, err := p.AddDocument(p.Tree().Root, "Index", "")
	assert.ErrorIs(t, err, wdtperr.ErrInvalidParent)
	exists, _ := afero.Exists(fs, "/work/docs/Index.md")
	assert.False(t, exists)
	assert.Equal(t, 0, p.Tree().Root.NumChildren())
}

func TestAddDocumentUnderDocumentFails(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	about := p.Tree().FindByPath("about")

	_, err := p.AddDocument(about, "child", "")
	assert.ErrorIs(t, err, wdtperr.ErrInvalidParent)
	_, err = p.AddDirectory(about, "child", "")
	assert.ErrorIs(t, err, wdtperr.ErrInvalidParent)
}

func TestRemoveDeletesFilesAndFixesSelection(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.RegenerateAll()
	require.NoError(t, err)

	posts := p.Tree().FindByPath("posts")
	require.NoError(t, p.Select(p.Tree().FindByPath("posts/hello")))
	require.NoError(t, p.Remove(posts))

	for _, gone := range []string{"/work/docs/posts", "/work/site/posts"} {
		exists, _ := afero.Exists(fs, gone)
		assert.False(t, exists, gone)
	}
	assert.True(t, p.Selected().IsRoot())
	assert.Nil(t, p.Tree().FindByPath("posts/hello"))

	reloaded, err := store.New(fs, p.Path()).Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"about"}, childNames(reloaded.Root))
	assert.Equal(t, reloaded.Root.Identity, reloaded.Settings.IdentityOfLastSelected)

	assert.ErrorIs(t, p.Remove(p.Tree().Root), wdtperr.ErrInvalidParent)
}

func TestRenameMovesSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.RegenerateAll()
	require.NoError(t, err)

	hello := p.Tree().FindByPath("posts/hello")
	require.NoError(t, p.Rename(hello, "greeting"))

	assert.Equal(t, "# Hello\n\nFirst post.", readFile(t, fs, "/work/docs/posts/greeting.md"))
	for _, gone := range []string{"/work/docs/posts/hello.md", "/work/site/posts/hello.html"} {
		exists, _ := afero.Exists(fs, gone)
		assert.False(t, exists, gone)
	}
	assert.True(t, hello.NeedsRegeneration)
	assert.True(t, hello.Parent().NeedsRegeneration)

	assert.ErrorIs(t, p.Rename(hello, "index"), wdtperr.ErrInvalidParent)
	assert.ErrorIs(t, p.Rename(hello, "../escape"), wdtperr.ErrInvalidParent)
	assert.Equal(t, "greeting", hello.Name)
}

func TestRenameUndoneWhenSourceCannotMove(t *testing.T) {
	fs := &flakyFs{Fs: afero.NewMemMapFs()}
	_, p := blogFixture(t, fs)
	about := p.Tree().FindByPath("about")
	modified := about.Modified

	fs.failRename = true
	err := p.Rename(about, "me")
	require.Error(t, err)
	assert.Equal(t, "about", about.Name)
	assert.Equal(t, modified, about.Modified)
	exists, _ := afero.Exists(fs, "/work/docs/about.md")
	assert.True(t, exists)
}

func TestRenameDirectoryOnDisk(t *testing.T) {
	dir := t.TempDir()
	fs := afero.NewOsFs()
	m := newManager(fs)
	res, err := m.Create(filepath.Join(dir, "blog.wdtp"), "Blog", false)
	require.NoError(t, err)
	p := res.Project

	posts, err := p.AddDirectory(p.Tree().Root, "posts", "")
	require.NoError(t, err)
	hello, err := p.AddDocument(posts, "hello", "")
	require.NoError(t, err)
	require.NoError(t, p.SaveDocument(hello, "hi"))

	require.NoError(t, p.Rename(posts, "articles"))
	assert.Equal(t, "hi", readFile(t, fs, filepath.Join(dir, "docs", "articles", "hello.md")))
	assert.True(t, hello.NeedsRegeneration)
}

func TestMoveMovesSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.Generate()
	require.NoError(t, err)

	about := p.Tree().FindByPath("about")
	posts := p.Tree().FindByPath("posts")
	require.NoError(t, p.Move(about, posts))

	assert.Equal(t, "About me.", readFile(t, fs, "/work/docs/posts/about.md"))
	exists, _ := afero.Exists(fs, "/work/site/about.html")
	assert.False(t, exists)
	assert.Equal(t, []string{"about", "hello"}, childNames(posts))
	assert.True(t, p.Tree().Root.NeedsRegeneration)
	assert.True(t, posts.NeedsRegeneration)

	assert.ErrorIs(t, p.Move(posts, p.Tree().FindByPath("posts/hello")), wdtperr.ErrInvalidParent)
}

func TestSaveDocumentDirtiesOnlyTheNode(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	report, err := p.Generate()
	require.NoError(t, err)
	require.NoError(t, report.Err())

	hello := p.Tree().FindByPath("posts/hello")
	before := hello.Modified
	require.NoError(t, p.SaveDocument(hello, "Edited."))

	assert.True(t, hello.NeedsRegeneration)
	assert.False(t, hello.Parent().NeedsRegeneration)
	assert.False(t, p.Tree().Root.NeedsRegeneration)
	assert.Greater(t, hello.Modified, before)

	assert.ErrorIs(t, p.SaveDocument(hello.Parent(), "x"), wdtperr.ErrInvalidParent)
}

func TestGeneratePersistsClearedFlags(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)

	report, err := p.Generate()
	require.NoError(t, err)
	require.NoError(t, report.Err())
	assert.Len(t, report.Generated, 4)

	page := readFile(t, fs, "/work/site/posts/hello.html")
	assert.Contains(t, page, "First post.")
	assert.Same(t, p.Tree().FindByPath("posts/hello"), p.NodeForHTML("/work/site/posts/hello.html"))
	assert.Same(t, p.Tree().FindByPath("posts"), p.NodeForHTML("site/posts/index.html"))

	reloaded, err := store.New(fs, p.Path()).Load()
	require.NoError(t, err)
	_ = tree.Walk(reloaded.Root, func(n *tree.Node) error {
		assert.False(t, n.NeedsRegeneration, tree.ResolvePath(n))
		return nil
	})
}

func TestRegenerateAllKeepsAddIn(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	css := readFile(t, fs, "/work/site/add-in/style.css")

	_, err := p.RegenerateAll()
	require.NoError(t, err)
	assert.Equal(t, css, readFile(t, fs, "/work/site/add-in/style.css"))
	exists, _ := afero.Exists(fs, "/work/site/index.html")
	assert.True(t, exists)
}

func TestFind(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	tr := p.Tree()
	hello, about := tr.FindByPath("posts/hello"), tr.FindByPath("about")
	extra, err := p.AddDocument(tr.Root, "zebra", "")
	require.NoError(t, err)
	require.NoError(t, p.SaveDocument(extra, "ANOTHER POST"))

	// Tree order: root, posts, posts/hello, about, zebra.
	assert.Same(t, hello, p.Find("post", nil, true))
	assert.Same(t, extra, p.Find("post", hello, true))
	assert.Nil(t, p.Find("post", extra, true))
	assert.Same(t, hello, p.Find("post", extra, false))
	assert.Same(t, extra, p.Find("post", nil, false))
	assert.Same(t, about, p.Find("ABOUT ME", nil, true))
	assert.Nil(t, p.Find("", nil, true))
	assert.Nil(t, p.Find("missing", nil, true))
}

type recordingView struct {
	state    map[string]bool
	restored int
}

func (v *recordingView) OpennessState() map[string]bool { return v.state }

func (v *recordingView) RestoreOpenness(map[string]bool) { v.restored++ }

func TestUpdateSettingsReordersAndSaves(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	view := &recordingView{state: map[string]bool{"x": true}}
	p.SetView(view)

	next := p.Tree().Settings
	next.DirectoriesFirst = false
	plan, err := p.UpdateSettings(next)
	require.NoError(t, err)
	assert.Equal(t, []string{"dirFirst"}, plan.Changed)
	assert.Equal(t, []string{"about", "posts"}, childNames(p.Tree().Root))
	assert.Equal(t, 1, view.restored)

	reloaded, err := store.New(fs, p.Path()).Load()
	require.NoError(t, err)
	assert.False(t, reloaded.Settings.DirectoriesFirst)
}

func TestReorderReachesIndexPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.AddDocument(p.Tree().Root, "zeta", "Zeta")
	require.NoError(t, err)
	_, err = p.RegenerateAll()
	require.NoError(t, err)

	before := readFile(t, fs, "/work/site/index.html")
	assert.Less(t, strings.Index(before, `href="about.html"`), strings.Index(before, `href="zeta.html"`))

	next := p.Tree().Settings
	next.Ascending = false
	_, err = p.UpdateSettings(next)
	require.NoError(t, err)

	report, err := p.Generate()
	require.NoError(t, err)
	assert.Contains(t, report.Generated, p.Tree().Root)

	after := readFile(t, fs, "/work/site/index.html")
	assert.NotEqual(t, before, after)
	assert.Less(t, strings.Index(after, `href="zeta.html"`), strings.Index(after, `href="about.html"`))
}

func TestRenderChangeRegeneratesEveryPage(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.RegenerateAll()
	require.NoError(t, err)

	next := p.Tree().Settings
	next.RenderMode = "book"
	_, err = p.UpdateSettings(next)
	require.NoError(t, err)

	reloaded, err := store.New(fs, p.Path()).Load()
	require.NoError(t, err)
	assert.True(t, reloaded.FindByPath("posts/hello").NeedsRegeneration)

	report, err := p.Generate()
	require.NoError(t, err)
	assert.Len(t, report.Generated, 4)
	assert.Contains(t, readFile(t, fs, "/work/site/index.html"), "index-book")
}

func TestDefaultTitle(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/a/blog.wdtp", "Blog"},
		{"/a/my-travel_notes.wdtp", "My Travel Notes"},
		{"/a/already Titled.wdtp", "Already Titled"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, defaultTitle(tt.path), tt.path)
	}
}

func TestNodeForSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)

	assert.Same(t, p.Tree().FindByPath("posts/hello"), p.NodeForSource("/work/docs/posts/hello.md"))
	assert.Nil(t, p.NodeForSource("/work/docs/posts"))
	assert.Nil(t, p.NodeForSource("/work/docs/posts/hello.txt"))
	assert.Nil(t, p.NodeForSource("/work/site/about.md"))
	assert.Nil(t, p.NodeForSource("/work/docs/ghost.md"))
}

func TestRetitle(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, p := blogFixture(t, fs)
	_, err := p.Generate()
	require.NoError(t, err)

	hello := p.Tree().FindByPath("posts/hello")
	require.NoError(t, p.Retitle(hello, "Greetings"))
	assert.Equal(t, "Greetings", hello.Title)
	assert.True(t, hello.NeedsRegeneration)
	assert.True(t, hello.Parent().NeedsRegeneration)
	assert.False(t, p.Tree().FindByPath("about").NeedsRegeneration)

	require.NoError(t, p.Retitle(p.Tree().Root, "Renamed Blog"))
	assert.True(t, p.Tree().FindByPath("about").NeedsRegeneration)

	reloaded, err := store.New(fs, p.Path()).Load()
	require.NoError(t, err)
	assert.Equal(t, "Renamed Blog", reloaded.Root.Title)
	assert.Equal(t, "Greetings", reloaded.FindByPath("posts/hello").Title)
}
