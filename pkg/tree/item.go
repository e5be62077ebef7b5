package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes the nodes of a project tree.
type Kind int

const (
	KindProject   Kind = iota // The single root of a project
	KindDirectory             // A directory under docs/
	KindDocument              // A Markdown document, always a leaf
)

// Persisted tag strings. They are kept stable for compatibility with older project files.
const (
	TagProject   = "wdtpProject"
	TagDirectory = "dir"
	TagDocument  = "doc"
)

// Tag returns the persisted tag of the kind.
func (k Kind) Tag() string {
	switch k {
	case KindProject:
		return TagProject
	case KindDirectory:
		return TagDirectory
	case KindDocument:
		return TagDocument
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindDirectory:
		return "directory"
	case KindDocument:
		return "document"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// KindFromTag maps a persisted tag back to its kind.
func KindFromTag(tag string) (Kind, error) {
	switch tag {
	case TagProject:
		return KindProject, nil
	case TagDirectory:
		return KindDirectory, nil
	case TagDocument:
		return KindDocument, nil
	}
	return 0, fmt.Errorf("unknown node tag %q", tag)
}

// Node represents a single entry of the project hierarchy.
type Node struct {
	Kind        Kind
	Name        string // Filesystem leaf name; documents carry no extension
	Title       string
	Description string
	Keywords    string
	Created     string // TimestampLayout
	Modified    string // TimestampLayout
	Identity    string

	NeedsRegeneration bool

	// Hierarchy
	parent   *Node
	children []*Node
}

// NewNode returns a detached node. It has no identity until it is attached to a tree.
func NewNode(kind Kind, name string) *Node {
	return &Node{Kind: kind, Name: name}
}

// Parent returns the parent node, nil for the root or a detached node.
func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// NumChildren returns the number of direct children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// IsRoot reports whether n is the project root.
func (n *Node) IsRoot() bool {
	return n.Kind == KindProject
}

// IsContainer reports whether n may hold children.
func (n *Node) IsContainer() bool {
	return n.Kind == KindProject || n.Kind == KindDirectory
}

// Depth returns the number of ancestors between n and the root.
func (n *Node) Depth() int {
	d := 0
	for p := n.parent; p != nil && !p.IsRoot(); p = p.parent {
		d++
	}
	if n.IsRoot() {
		return 0
	}
	return d + 1
}

// DisplayTitle returns the title, or the name when no title is set.
func (n *Node) DisplayTitle() string {
	if strings.TrimSpace(n.Title) != "" {
		return n.Title
	}
	return n.Name
}

// ResolvePath joins the names of n's ancestors below the root down to n with "/".
// The root resolves to the empty string.
func ResolvePath(n *Node) string {
	if n == nil || n.IsRoot() {
		return ""
	}
	parts := make([]string, n.Depth())
	i := len(parts) - 1
	for cur := n; cur != nil && !cur.IsRoot(); cur = cur.parent {
		parts[i] = cur.Name
		i--
	}
	return strings.Join(parts, "/")
}

// MarkDirty flags n as needing regeneration.
func MarkDirty(n *Node) {
	n.NeedsRegeneration = true
}

// MarkDirtyRecursive flags n and every descendant as needing regeneration.
func MarkDirtyRecursive(n *Node) {
	_ = Walk(n, func(c *Node) error {
		c.NeedsRegeneration = true
		return nil
	})
}

// markAncestorsDirty flags n and every ancestor up to the root.
func markAncestorsDirty(n *Node) {
	for cur := n; cur != nil; cur = cur.parent {
		cur.NeedsRegeneration = true
	}
}

// SkipChildren can be returned from a WalkFunc to skip the node's subtree.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every visited node.
type WalkFunc func(n *Node) error

// Walk visits n and its descendants in pre-order, node before children.
func Walk(n *Node, fn WalkFunc) error {
	if n == nil {
		return nil
	}
	if err := fn(n); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	for _, c := range n.children {
		if err := Walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}

// isAncestor reports whether a is n or one of n's ancestors.
func isAncestor(a, n *Node) bool {
	for cur := n; cur != nil; cur = cur.parent {
		if cur == a {
			return true
		}
	}
	return false
}
