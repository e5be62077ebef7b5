package tree

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/grovetools/wdtp/pkg/wdtperr"
)

// TimestampLayout is the format of Node.Created and Node.Modified. Its
// lexicographic order matches chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// Observer receives tree-change notifications, e.g. for a view to re-render.
type Observer interface {
	NodeInserted(parent, node *Node)
	NodeRemoved(parent, node *Node)
	ChildrenReordered(dir *Node)
}

// Tree is one project's hierarchy plus its settings.
type Tree struct {
	Root     *Node
	Settings Settings
	Owner    string

	observers   []Observer
	byIdentity  map[string]*Node
	now         func() time.Time
	newIdentity func() string
}

// Option configures a Tree.
type Option func(*Tree)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tree) {
		t.now = now
	}
}

// WithIdentities overrides the generator of node identities.
func WithIdentities(gen func() string) Option {
	return func(t *Tree) {
		t.newIdentity = gen
	}
}

// New returns a tree holding only a project root titled title.
func New(title string, options ...Option) *Tree {
	t := &Tree{
		Settings:    DefaultSettings(),
		byIdentity:  make(map[string]*Node),
		now:         time.Now,
		newIdentity: uuid.NewString,
	}
	for _, opt := range options {
		opt(t)
	}

	root := NewNode(KindProject, "")
	root.Title = title
	root.Created = t.Timestamp()
	root.Modified = root.Created
	root.Identity = t.freshIdentity()
	t.Root = root
	t.byIdentity[root.Identity] = root
	return t
}

// NewWithRoot returns a tree around an already-built root, as produced by a
// deserializer. Identities must be unique across root's subtree; missing ones
// are assigned.
func NewWithRoot(root *Node, settings Settings, options ...Option) (*Tree, error) {
	if root == nil || root.Kind != KindProject {
		return nil, fmt.Errorf("%w: root must be a project node", wdtperr.ErrNotAProject)
	}
	t := &Tree{
		Root:        root,
		Settings:    settings,
		byIdentity:  make(map[string]*Node),
		now:         time.Now,
		newIdentity: uuid.NewString,
	}
	for _, opt := range options {
		opt(t)
	}

	err := Walk(root, func(n *Node) error {
		if n != root && n.Kind == KindProject {
			return fmt.Errorf("%w: nested project node %q", wdtperr.ErrNotAProject, n.Name)
		}
		if n.Kind == KindDocument && len(n.children) > 0 {
			return fmt.Errorf("%w: document %q has children", wdtperr.ErrInvalidParent, ResolvePath(n))
		}
		if n.Identity == "" {
			n.Identity = t.freshIdentity()
		}
		if _, dup := t.byIdentity[n.Identity]; dup {
			return fmt.Errorf("duplicate identity %q", n.Identity)
		}
		t.byIdentity[n.Identity] = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Attach appends child to parent without marking anything dirty. It is meant
// for deserializers building a detached hierarchy before NewWithRoot.
func Attach(parent, child *Node) error {
	if !parent.IsContainer() {
		return fmt.Errorf("%w: %s %q cannot hold children", wdtperr.ErrInvalidParent, parent.Kind, parent.Name)
	}
	if err := checkName(parent, child.Name, nil); err != nil {
		return err
	}
	child.parent = parent
	parent.children = append(parent.children, child)
	return nil
}

// AddObserver registers o for change notifications.
func (t *Tree) AddObserver(o Observer) {
	t.observers = append(t.observers, o)
}

// Timestamp returns the current time in TimestampLayout.
func (t *Tree) Timestamp() string {
	return t.now().Format(TimestampLayout)
}

// CreateNode inserts a new node named name under parent. The node and its
// ancestors are marked as needing regeneration.
func (t *Tree) CreateNode(kind Kind, parent *Node, name string) (*Node, error) {
	if kind == KindProject {
		return nil, fmt.Errorf("%w: a project node cannot be nested", wdtperr.ErrInvalidParent)
	}
	if parent == nil || !t.contains(parent) {
		return nil, fmt.Errorf("%w: parent is not part of this project", wdtperr.ErrInvalidParent)
	}
	if !parent.IsContainer() {
		return nil, fmt.Errorf("%w: %s %q cannot hold children", wdtperr.ErrInvalidParent, parent.Kind, ResolvePath(parent))
	}
	if err := checkName(parent, name, nil); err != nil {
		return nil, err
	}

	n := NewNode(kind, name)
	n.Identity = t.freshIdentity()
	n.Created = t.Timestamp()
	n.Modified = n.Created
	n.parent = parent
	parent.children = append(parent.children, n)
	t.byIdentity[n.Identity] = n
	markAncestorsDirty(n)

	for _, o := range t.observers {
		o.NodeInserted(parent, n)
	}
	return n, nil
}

// RemoveNode detaches n and its subtree. The caller deletes the backing files.
func (t *Tree) RemoveNode(n *Node) error {
	if n == nil || n.IsRoot() {
		return fmt.Errorf("%w: the project root cannot be removed", wdtperr.ErrInvalidParent)
	}
	if !t.contains(n) {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	parent := n.parent
	parent.children = without(parent.children, n)
	n.parent = nil
	_ = Walk(n, func(c *Node) error {
		delete(t.byIdentity, c.Identity)
		return nil
	})
	MarkDirty(parent)

	for _, o := range t.observers {
		o.NodeRemoved(parent, n)
	}
	return nil
}

// Rename changes n's leaf name. Paths of n's subtree change, so the subtree and
// the parent index are marked dirty. The identity is kept.
func (t *Tree) Rename(n *Node, name string) error {
	if n == nil || n.IsRoot() {
		return fmt.Errorf("%w: the project root cannot be renamed", wdtperr.ErrInvalidParent)
	}
	if !t.contains(n) {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	if err := checkName(n.parent, name, n); err != nil {
		return err
	}
	n.Name = name
	n.Modified = t.Timestamp()
	MarkDirtyRecursive(n)
	MarkDirty(n.parent)
	return nil
}

// Move re-parents n under newParent. The moved subtree and both the old and
// the new parent are marked dirty.
func (t *Tree) Move(n, newParent *Node) error {
	if n == nil || n.IsRoot() {
		return fmt.Errorf("%w: the project root cannot be moved", wdtperr.ErrInvalidParent)
	}
	if !t.contains(n) || newParent == nil || !t.contains(newParent) {
		return fmt.Errorf("%w: node is not part of this project", wdtperr.ErrInvalidParent)
	}
	if !newParent.IsContainer() {
		return fmt.Errorf("%w: %s %q cannot hold children", wdtperr.ErrInvalidParent, newParent.Kind, ResolvePath(newParent))
	}
	if isAncestor(n, newParent) {
		return fmt.Errorf("%w: cannot move %q into its own subtree", wdtperr.ErrInvalidParent, ResolvePath(n))
	}
	oldParent := n.parent
	if oldParent == newParent {
		return nil
	}
	if err := checkName(newParent, n.Name, n); err != nil {
		return err
	}

	oldParent.children = without(oldParent.children, n)
	n.parent = newParent
	newParent.children = append(newParent.children, n)
	MarkDirtyRecursive(n)
	MarkDirty(oldParent)
	MarkDirty(newParent)

	for _, o := range t.observers {
		o.NodeRemoved(oldParent, n)
		o.NodeInserted(newParent, n)
	}
	return nil
}

// Touch records a content edit of n. Only n itself becomes dirty; the parent
// index does not list content and stays as it is.
func (t *Tree) Touch(n *Node) {
	n.Modified = t.Timestamp()
	MarkDirty(n)
}

// SetChildren replaces dir's child order with ordered, which must be a
// permutation of the current children. It reports whether the order changed.
func (t *Tree) SetChildren(dir *Node, ordered []*Node) (bool, error) {
	if len(ordered) != len(dir.children) {
		return false, fmt.Errorf("reorder of %q: got %d children, want %d", ResolvePath(dir), len(ordered), len(dir.children))
	}
	seen := make(map[*Node]bool, len(ordered))
	for _, c := range ordered {
		if c.parent != dir || seen[c] {
			return false, fmt.Errorf("reorder of %q: not a permutation of its children", ResolvePath(dir))
		}
		seen[c] = true
	}
	changed := false
	for i := range ordered {
		if dir.children[i] != ordered[i] {
			changed = true
			break
		}
	}
	if !changed {
		return false, nil
	}
	copy(dir.children, ordered)
	for _, o := range t.observers {
		o.ChildrenReordered(dir)
	}
	return true, nil
}

// FindByIdentity returns the node with the given identity, or nil.
func (t *Tree) FindByIdentity(id string) *Node {
	return t.byIdentity[id]
}

// FindByPath resolves a slash-separated path below the root. Matching is case-insensitive
// like sibling name collisions. The empty path is the root.
func (t *Tree) FindByPath(p string) *Node {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	cur := t.Root
	if p == "" {
		return cur
	}
	for _, part := range strings.Split(p, "/") {
		var next *Node
		for _, c := range cur.children {
			if strings.EqualFold(c.Name, part) {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// Documents returns every document in pre-order.
func (t *Tree) Documents() []*Node {
	var docs []*Node
	_ = Walk(t.Root, func(n *Node) error {
		if n.Kind == KindDocument {
			docs = append(docs, n)
		}
		return nil
	})
	return docs
}

// Directories returns the root and every directory in pre-order.
func (t *Tree) Directories() []*Node {
	var dirs []*Node
	_ = Walk(t.Root, func(n *Node) error {
		if n.IsContainer() {
			dirs = append(dirs, n)
		}
		return nil
	})
	return dirs
}

// Len returns the number of nodes including the root.
func (t *Tree) Len() int {
	return len(t.byIdentity)
}

// ClearDirty resets every regeneration flag.
func (t *Tree) ClearDirty() {
	_ = Walk(t.Root, func(n *Node) error {
		n.NeedsRegeneration = false
		return nil
	})
}

func (t *Tree) contains(n *Node) bool {
	return t.byIdentity[n.Identity] == n
}

func (t *Tree) freshIdentity() string {
	for {
		id := t.newIdentity()
		if _, taken := t.byIdentity[id]; !taken && id != "" {
			return id
		}
	}
}

// checkName validates name as a child of parent, ignoring self.
func checkName(parent *Node, name string, self *Node) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed != name || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid name %q", wdtperr.ErrInvalidParent, name)
	}
	for _, c := range parent.children {
		if c != self && strings.EqualFold(c.Name, name) {
			return fmt.Errorf("%w: %q already exists in %q", wdtperr.ErrInvalidParent, name, displayPath(parent))
		}
	}
	return nil
}

func displayPath(n *Node) string {
	if p := ResolvePath(n); p != "" {
		return p
	}
	return "/"
}

func without(list []*Node, n *Node) []*Node {
	out := list[:0]
	for _, c := range list {
		if c != n {
			out = append(out, c)
		}
	}
	for i := len(out); i < len(list); i++ {
		list[i] = nil
	}
	return out
}
