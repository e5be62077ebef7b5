package tree

import (
	"fmt"
	"strings"
)

// OrderKey selects the attribute siblings are ordered by.
type OrderKey int

const (
	OrderName OrderKey = iota
	OrderTitle
	OrderSize
	OrderCreateTime
	OrderModifyTime
)

var orderKeyNames = map[OrderKey]string{
	OrderName:       "name",
	OrderTitle:      "title",
	OrderSize:       "size",
	OrderCreateTime: "create-time",
	OrderModifyTime: "modify-time",
}

func (k OrderKey) String() string {
	if s, ok := orderKeyNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OrderKey(%d)", int(k))
}

// IsTimeKey reports whether k orders by a stored timestamp.
func (k OrderKey) IsTimeKey() bool {
	return k == OrderCreateTime || k == OrderModifyTime
}

// ParseOrderKey accepts the names produced by String, case-insensitively.
func ParseOrderKey(s string) (OrderKey, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range orderKeyNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown order key %q (want name, title, size, create-time or modify-time)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k OrderKey) MarshalText() ([]byte, error) {
	s, ok := orderKeyNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown order key %d", int(k))
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OrderKey) UnmarshalText(b []byte) error {
	parsed, err := ParseOrderKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Render defaults for a new project.
const (
	DefaultRenderMode   = "blog"
	DefaultTemplateFile = "index.html"
)

// Settings is the project-wide configuration owned by the root.
type Settings struct {
	OrderKey         OrderKey
	Ascending        bool
	DirectoriesFirst bool

	// Display only, no ordering effect.
	ShowWhat int
	Tooltip  int

	IdentityOfLastSelected string
	WindowGeometry         string // Opaque, owned by the UI layer
	RenderMode             string
	TemplateFile           string
}

// DefaultSettings returns the settings of a freshly created project.
func DefaultSettings() Settings {
	return Settings{
		OrderKey:         OrderName,
		Ascending:        true,
		DirectoriesFirst: true,
		RenderMode:       DefaultRenderMode,
		TemplateFile:     DefaultTemplateFile,
	}
}

// OrderingEqual reports whether a and b produce the same sibling order.
func (s Settings) OrderingEqual(o Settings) bool {
	return s.OrderKey == o.OrderKey && s.Ascending == o.Ascending && s.DirectoriesFirst == o.DirectoriesFirst
}

// Diff lists the names of the fields that differ between s and o.
func (s Settings) Diff(o Settings) []string {
	var changed []string
	if s.OrderKey != o.OrderKey {
		changed = append(changed, "order")
	}
	if s.Ascending != o.Ascending {
		changed = append(changed, "ascending")
	}
	if s.DirectoriesFirst != o.DirectoriesFirst {
		changed = append(changed, "dirFirst")
	}
	if s.ShowWhat != o.ShowWhat {
		changed = append(changed, "showWhat")
	}
	if s.Tooltip != o.Tooltip {
		changed = append(changed, "tooltip")
	}
	if s.IdentityOfLastSelected != o.IdentityOfLastSelected {
		changed = append(changed, "identityOfLastSelectedItem")
	}
	if s.WindowGeometry != o.WindowGeometry {
		changed = append(changed, "mainWindowSizeAndPosition")
	}
	if s.RenderMode != o.RenderMode {
		changed = append(changed, "render")
	}
	if s.TemplateFile != o.TemplateFile {
		changed = append(changed, "tplFile")
	}
	return changed
}
