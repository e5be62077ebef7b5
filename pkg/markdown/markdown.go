// Package markdown converts document sources to HTML fragments for the site generator.
package markdown

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/grovetools/wdtp/pkg/site"
)

// DefaultHighlightStyle is the chroma style used for code blocks.
const DefaultHighlightStyle = "github"

// Options controls the conversion.
type Options struct {
	HardWraps      bool
	UnsafeHTML     bool // Pass raw HTML through; the result is sanitized
	HighlightStyle string
}

// Converter renders GitHub flavoured Markdown with emoji and highlighted code blocks.
type Converter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	opts   Options
}

var _ site.Converter = (*Converter)(nil)

// New returns a converter configured by opts.
func New(opts Options) *Converter {
	if opts.HighlightStyle == "" {
		opts.HighlightStyle = DefaultHighlightStyle
	}

	var rendererOpts []renderer.Option
	if opts.HardWraps {
		rendererOpts = append(rendererOpts, html.WithHardWraps())
	}
	if opts.UnsafeHTML {
		rendererOpts = append(rendererOpts, html.WithUnsafe())
	}

	c := &Converter{opts: opts}
	c.md = goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Typographer,
			emoji.Emoji,
			highlighting.NewHighlighting(
				highlighting.WithStyle(opts.HighlightStyle),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
				),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(linkRewriter{}, 100)),
		),
		goldmark.WithRendererOptions(rendererOpts...),
	)

	// Raw HTML is only let through after sanitizing.
	if opts.UnsafeHTML {
		c.policy = bluemonday.UGCPolicy()
		c.policy.AllowAttrs("class").Globally()
		c.policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	}
	return c
}

// ToHTML converts src to an HTML fragment.
func (c *Converter) ToHTML(src string, ctx site.RenderContext) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("convert %s: %w", ctx.Path, err)
	}
	if c.policy != nil {
		return c.policy.Sanitize(buf.String()), nil
	}
	return buf.String(), nil
}

// StyleSheet returns the CSS for the highlighted code blocks of the configured style.
func (c *Converter) StyleSheet() (string, error) {
	var buf bytes.Buffer
	formatter := chromahtml.New(chromahtml.WithClasses(true))
	if err := formatter.WriteCSS(&buf, styles.Get(c.opts.HighlightStyle)); err != nil {
		return "", fmt.Errorf("write highlight css: %w", err)
	}
	return buf.String(), nil
}

// linkRewriter points relative links to Markdown sources at their generated pages.
type linkRewriter struct{}

func (linkRewriter) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if link, ok := n.(*ast.Link); ok {
			link.Destination = []byte(rewriteDestination(string(link.Destination)))
		}
		return ast.WalkContinue, nil
	})
}

func rewriteDestination(dest string) string {
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(u.Path, "/") {
		return dest
	}
	if !strings.HasSuffix(strings.ToLower(u.Path), ".md") {
		return dest
	}
	u.Path = u.Path[:len(u.Path)-len(".md")] + ".html"
	return u.String()
}
