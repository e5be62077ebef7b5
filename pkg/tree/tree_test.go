package tree

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/wdtp/pkg/wdtperr"
)

func newTestTree(t *testing.T) *Tree {
	t.Helper()
	n := 0
	return New("Blog",
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }),
		WithIdentities(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
}

type recorder struct {
	events []string
}

func (r *recorder) NodeInserted(parent, node *Node) {
	r.events = append(r.events, "insert "+ResolvePath(node))
}

func (r *recorder) NodeRemoved(parent, node *Node) {
	r.events = append(r.events, "remove "+node.Name)
}

func (r *recorder) ChildrenReordered(dir *Node) {
	r.events = append(r.events, "reorder "+ResolvePath(dir))
}

func TestCreateAndResolvePath(t *testing.T) {
	tr := newTestTree(t)

	posts, err := tr.CreateNode(KindDirectory, tr.Root, "posts")
	require.NoError(t, err)
	hello, err := tr.CreateNode(KindDocument, posts, "hello")
	require.NoError(t, err)

	assert.Equal(t, "posts/hello", ResolvePath(hello))
	assert.Equal(t, "posts", ResolvePath(posts))
	assert.Equal(t, "", ResolvePath(tr.Root))
	assert.Equal(t, 2, hello.Depth())
	assert.Equal(t, "2024-05-01 09:30:00", hello.Created)
	assert.Same(t, hello, tr.FindByIdentity(hello.Identity))
	assert.Same(t, hello, tr.FindByPath("Posts/HELLO"))
	assert.Nil(t, tr.FindByPath("posts/missing"))
}

func TestCreateMarksNodeAndAncestorsDirty(t *testing.T) {
	tr := newTestTree(t)
	posts, err := tr.CreateNode(KindDirectory, tr.Root, "posts")
	require.NoError(t, err)
	tr.ClearDirty()

	hello, err := tr.CreateNode(KindDocument, posts, "hello")
	require.NoError(t, err)

	assert.True(t, hello.NeedsRegeneration)
	assert.True(t, posts.NeedsRegeneration)
	assert.True(t, tr.Root.NeedsRegeneration)
}

func TestCreateNodeRejectsInvalidParents(t *testing.T) {
	tr := newTestTree(t)
	doc, err := tr.CreateNode(KindDocument, tr.Root, "readme")
	require.NoError(t, err)

	tests := []struct {
		name   string
		kind   Kind
		parent *Node
		leaf   string
	}{
		{"document parent", KindDocument, doc, "child"},
		{"name collision ignoring case", KindDirectory, tr.Root, "README"},
		{"empty name", KindDocument, tr.Root, ""},
		{"separator in name", KindDocument, tr.Root, "a/b"},
		{"nested project", KindProject, tr.Root, "p"},
		{"foreign parent", KindDocument, NewNode(KindDirectory, "x"), "y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.CreateNode(tt.kind, tt.parent, tt.leaf)
			assert.ErrorIs(t, err, wdtperr.ErrInvalidParent)
		})
	}
}

func TestIdentitiesAreUnique(t *testing.T) {
	tr := New("Unique")
	seen := map[string]bool{tr.Root.Identity: true}
	for i := 0; i < 50; i++ {
		n, err := tr.CreateNode(KindDocument, tr.Root, fmt.Sprintf("doc-%d", i))
		require.NoError(t, err)
		require.False(t, seen[n.Identity], "identity reused: %s", n.Identity)
		seen[n.Identity] = true
	}
	assert.Equal(t, 51, tr.Len())
}

func TestRemoveNode(t *testing.T) {
	tr := newTestTree(t)
	rec := &recorder{}
	tr.AddObserver(rec)

	posts, _ := tr.CreateNode(KindDirectory, tr.Root, "posts")
	hello, _ := tr.CreateNode(KindDocument, posts, "hello")
	tr.ClearDirty()

	require.NoError(t, tr.RemoveNode(posts))
	assert.Nil(t, tr.FindByIdentity(hello.Identity))
	assert.Nil(t, posts.Parent())
	assert.Equal(t, 0, tr.Root.NumChildren())
	assert.True(t, tr.Root.NeedsRegeneration)
	assert.Equal(t, []string{"insert posts", "insert posts/hello", "remove posts"}, rec.events)

	assert.ErrorIs(t, tr.RemoveNode(tr.Root), wdtperr.ErrInvalidParent)
	assert.ErrorIs(t, tr.RemoveNode(posts), wdtperr.ErrInvalidParent)
}

func TestTouchOnlyMarksDocument(t *testing.T) {
	tr := newTestTree(t)
	posts, _ := tr.CreateNode(KindDirectory, tr.Root, "posts")
	hello, _ := tr.CreateNode(KindDocument, posts, "hello")
	tr.ClearDirty()

	tr.Touch(hello)

	assert.True(t, hello.NeedsRegeneration)
	assert.False(t, posts.NeedsRegeneration)
	assert.False(t, tr.Root.NeedsRegeneration)
}

func TestMoveMarksBothParents(t *testing.T) {
	tr := newTestTree(t)
	posts, _ := tr.CreateNode(KindDirectory, tr.Root, "posts")
	drafts, _ := tr.CreateNode(KindDirectory, tr.Root, "drafts")
	hello, _ := tr.CreateNode(KindDocument, drafts, "hello")
	id := hello.Identity
	tr.ClearDirty()

	require.NoError(t, tr.Move(hello, posts))

	assert.True(t, hello.NeedsRegeneration)
	assert.True(t, posts.NeedsRegeneration)
	assert.True(t, drafts.NeedsRegeneration)
	assert.Equal(t, "posts/hello", ResolvePath(hello))
	assert.Equal(t, id, hello.Identity)

	assert.ErrorIs(t, tr.Move(posts, posts), wdtperr.ErrInvalidParent)
	assert.ErrorIs(t, tr.Move(hello, hello), wdtperr.ErrInvalidParent)
}

func TestRenameKeepsIdentity(t *testing.T) {
	tr := newTestTree(t)
	posts, _ := tr.CreateNode(KindDirectory, tr.Root, "posts")
	hello, _ := tr.CreateNode(KindDocument, posts, "hello")
	_, _ = tr.CreateNode(KindDocument, posts, "other")
	id := hello.Identity
	tr.ClearDirty()

	require.NoError(t, tr.Rename(hello, "hello-world"))
	assert.Equal(t, id, hello.Identity)
	assert.Equal(t, "posts/hello-world", ResolvePath(hello))
	assert.True(t, hello.NeedsRegeneration)
	assert.True(t, posts.NeedsRegeneration)

	assert.ErrorIs(t, tr.Rename(hello, "Other"), wdtperr.ErrInvalidParent)
	require.NoError(t, tr.Rename(hello, "Hello-World"), "renaming to a case variant of itself is allowed")
}

func TestResolvePathIgnoresSiblingOrder(t *testing.T) {
	tr := newTestTree(t)
	a, _ := tr.CreateNode(KindDirectory, tr.Root, "a")
	b, _ := tr.CreateNode(KindDirectory, a, "b")
	d, _ := tr.CreateNode(KindDocument, b, "d")
	_, _ = tr.CreateNode(KindDocument, a, "z")
	before := ResolvePath(d)

	children := a.Children()
	children[0], children[1] = children[1], children[0]
	changed, err := tr.SetChildren(a, children)
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, before, ResolvePath(d))
	assert.Equal(t, "a/b/d", ResolvePath(d))
}

func TestSetChildrenRejectsNonPermutation(t *testing.T) {
	tr := newTestTree(t)
	a, _ := tr.CreateNode(KindDocument, tr.Root, "a")
	_, _ = tr.CreateNode(KindDocument, tr.Root, "b")

	_, err := tr.SetChildren(tr.Root, []*Node{a, a})
	assert.Error(t, err)
	_, err = tr.SetChildren(tr.Root, []*Node{a})
	assert.Error(t, err)
}

func TestMarkDirtyRecursive(t *testing.T) {
	tr := newTestTree(t)
	a, _ := tr.CreateNode(KindDirectory, tr.Root, "a")
	b, _ := tr.CreateNode(KindDocument, a, "b")
	c, _ := tr.CreateNode(KindDocument, tr.Root, "c")
	tr.ClearDirty()

	MarkDirtyRecursive(a)
	assert.True(t, a.NeedsRegeneration)
	assert.True(t, b.NeedsRegeneration)
	assert.False(t, c.NeedsRegeneration)
	assert.False(t, tr.Root.NeedsRegeneration)
}

func TestNewWithRootRejectsDuplicateIdentity(t *testing.T) {
	root := NewNode(KindProject, "")
	root.Identity = "same"
	child := NewNode(KindDocument, "doc")
	child.Identity = "same"
	require.NoError(t, Attach(root, child))

	_, err := NewWithRoot(root, DefaultSettings())
	assert.Error(t, err)
}

func TestOrderKeyText(t *testing.T) {
	for k := OrderName; k <= OrderModifyTime; k++ {
		b, err := k.MarshalText()
		require.NoError(t, err)
		var back OrderKey
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, k, back)
	}
	_, err := ParseOrderKey("words")
	assert.Error(t, err)
}
