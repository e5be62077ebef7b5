package tree

import "path"

// Layout of a project directory, relative to the directory holding the project file.
const (
	DocsDir     = "docs"
	SiteDir     = "site"
	AddInDir    = "site/add-in"
	ThemesDir   = "themes"
	MarkdownExt = ".md"
	ProjectExt  = ".wdtp"
	PackageExt  = ".wpck"
)

// SourcePath returns the slash-separated path of n's backing file or directory
// relative to the project directory: docs/<path>.md for documents and
// docs/<path> for directories and the root.
func SourcePath(n *Node) string {
	p := path.Join(DocsDir, ResolvePath(n))
	if n.Kind == KindDocument {
		p += MarkdownExt
	}
	return p
}
