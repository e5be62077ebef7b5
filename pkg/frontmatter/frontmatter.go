package frontmatter

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var frontmatterPattern = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---(?:\r?\n(.*)|$)`)

// Frontmatter represents the optional metadata block at the beginning of a document
type Frontmatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords,flow"`
	Created     string   `yaml:"created,omitempty"`
	Modified    string   `yaml:"modified,omitempty"`
}

// Parse extracts frontmatter from content and returns the parsed data and body
func Parse(content string) (*Frontmatter, string, error) {
	matches := frontmatterPattern.FindStringSubmatch(content)
	if len(matches) != 3 {
		// No frontmatter found
		return nil, content, nil
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(matches[1]), &fm); err != nil {
		return nil, content, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	// Ensure arrays are never nil
	if fm.Keywords == nil {
		fm.Keywords = []string{}
	}

	return &fm, matches[2], nil
}

// Strip returns content without its frontmatter block. Content whose block
// does not parse is returned unchanged.
func Strip(content string) string {
	_, body, err := Parse(content)
	if err != nil {
		return content
	}
	return body
}

// Build creates the YAML frontmatter string from a Frontmatter struct
func Build(fm *Frontmatter) string {
	var sb strings.Builder

	sb.WriteString("---\n")
	sb.WriteString(fmt.Sprintf("title: %s\n", quoteIfNeeded(fm.Title)))
	if fm.Description != "" {
		sb.WriteString(fmt.Sprintf("description: %s\n", quoteIfNeeded(fm.Description)))
	}
	sb.WriteString(fmt.Sprintf("keywords: %s\n", formatYAMLArray(fm.Keywords)))

	// Timestamps
	if fm.Created != "" {
		sb.WriteString(fmt.Sprintf("created: %s\n", fm.Created))
	}
	if fm.Modified != "" {
		sb.WriteString(fmt.Sprintf("modified: %s\n", fm.Modified))
	}

	sb.WriteString("---")

	return sb.String()
}

// BuildContent combines frontmatter and body content into a complete document
func BuildContent(fm *Frontmatter, bodyContent string) string {
	frontmatterStr := Build(fm)

	// Ensure proper spacing between frontmatter and body
	if !strings.HasPrefix(bodyContent, "\n") {
		return frontmatterStr + "\n\n" + bodyContent
	}
	return frontmatterStr + "\n" + bodyContent
}

// SplitKeywords turns a comma separated keyword string into a list
func SplitKeywords(s string) []string {
	keywords := []string{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			keywords = append(keywords, part)
		}
	}
	return keywords
}

// formatYAMLArray formats a string slice as a YAML flow-style array
func formatYAMLArray(items []string) string {
	if len(items) == 0 {
		return "[]"
	}

	quotedItems := make([]string, len(items))
	for i, item := range items {
		if needsQuoting(item) {
			quotedItems[i] = fmt.Sprintf("%q", item)
		} else {
			quotedItems[i] = item
		}
	}

	return fmt.Sprintf("[%s]", strings.Join(quotedItems, ", "))
}

func quoteIfNeeded(s string) string {
	if needsQuoting(s) || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "#") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// needsQuoting checks if a string needs to be quoted in YAML
func needsQuoting(s string) bool {
	return strings.ContainsAny(s, ",:[]{}\"'")
}
