// Package sorter orders the children of every directory of a project tree by
// the project's settings and applies settings changes as one reorder step.
package sorter

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/text/cases"

	"github.com/grovetools/wdtp/pkg/tree"
)

// ExpansionView is implemented by a view that tracks which directories are
// expanded. The state is keyed by node identity.
type ExpansionView interface {
	OpennessState() map[string]bool
	RestoreOpenness(state map[string]bool)
}

// Saver persists the tree after a settings change.
type Saver interface {
	Save(t *tree.Tree) error
}

// ReorderPlan describes what an UpdateSettings call changed.
type ReorderPlan struct {
	Changed   []string     // Names of the settings fields that changed
	Reordered []*tree.Node // Directories whose child order changed
}

// Sorter keeps a tree's sibling order consistent with its settings.
type Sorter struct {
	tree       *tree.Tree
	fs         afero.Fs
	projectDir string
	view       ExpansionView
	saver      Saver
	logger     *logrus.Entry
}

// Option configures a Sorter.
type Option func(*Sorter)

// WithView attaches a view whose expansion state survives reorders.
func WithView(v ExpansionView) Option {
	return func(s *Sorter) {
		s.view = v
	}
}

// WithSaver persists settings changes through saver.
func WithSaver(saver Saver) Option {
	return func(s *Sorter) {
		s.saver = saver
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Sorter) {
		s.logger = logger
	}
}

// New returns a sorter for t. Backing files are looked up on fs below projectDir.
func New(t *tree.Tree, fs afero.Fs, projectDir string, options ...Option) *Sorter {
	s := &Sorter{
		tree:       t,
		fs:         fs,
		projectDir: projectDir,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		s.logger = logrus.NewEntry(l)
	}
	s.logger = s.logger.WithField("component", "sorter")
	return s
}

// SetView replaces the attached expansion view.
func (s *Sorter) SetView(v ExpansionView) {
	s.view = v
}

// Compare orders a before b when the result is negative, using the current settings.
func (s *Sorter) Compare(a, b *tree.Node) int {
	return s.compare(s.tree.Settings, a, b)
}

func (s *Sorter) compare(st tree.Settings, a, b *tree.Node) int {
	// The root never has siblings; keep it first should one slip in.
	if a.IsRoot() {
		return -1
	}
	if b.IsRoot() {
		return 1
	}

	if a.Kind != b.Kind {
		if a.Kind == tree.KindDirectory {
			return pick(st.DirectoriesFirst, -1, 1)
		}
		return pick(st.DirectoriesFirst, 1, -1)
	}

	var r int
	switch st.OrderKey {
	case tree.OrderName:
		r = compareFold(a.Name, b.Name)
	case tree.OrderTitle:
		r = compareFold(a.Title, b.Title)
	case tree.OrderSize:
		r = compareInt64(s.size(a), s.size(b))
	case tree.OrderCreateTime, tree.OrderModifyTime:
		if !s.exists(a) || !s.exists(b) {
			return 0
		}
		if st.OrderKey == tree.OrderCreateTime {
			r = compareFold(a.Created, b.Created)
		} else {
			r = compareFold(a.Modified, b.Modified)
		}
		// Timestamp keys store the direction inverted: ascending lists the newest first.
		return pick(st.Ascending, -r, r)
	default:
		return 0
	}
	return pick(st.Ascending, r, -r)
}

// SortChildren orders dir's children by the current settings. It reports whether the order changed.
func (s *Sorter) SortChildren(dir *tree.Node) (bool, error) {
	if !dir.IsContainer() {
		return false, nil
	}
	return s.tree.SetChildren(dir, s.sorted(s.tree.Settings, dir))
}

// SortAll orders every directory of the tree and returns those whose order changed.
func (s *Sorter) SortAll() ([]*tree.Node, error) {
	plan := s.plan(s.tree.Settings)
	return s.apply(plan)
}

// UpdateSettings applies next to the tree: it captures the view's expansion
// state, reorders every directory, restores the state and persists the tree.
// New orders are computed for the whole tree before any directory changes.
func (s *Sorter) UpdateSettings(next tree.Settings) (ReorderPlan, error) {
	plan := ReorderPlan{Changed: s.tree.Settings.Diff(next)}
	if len(plan.Changed) == 0 {
		return plan, nil
	}

	var orders map[*tree.Node][]*tree.Node
	if !s.tree.Settings.OrderingEqual(next) {
		orders = s.plan(next)
	}

	var state map[string]bool
	if s.view != nil {
		state = s.view.OpennessState()
	}

	reordered, err := s.apply(orders)
	if err != nil {
		return plan, err
	}
	plan.Reordered = reordered
	s.tree.Settings = next

	// Index pages list children in order and are rendered through the theme.
	for _, dir := range reordered {
		tree.MarkDirty(dir)
	}
	if slices.Contains(plan.Changed, "render") || slices.Contains(plan.Changed, "tplFile") {
		tree.MarkDirtyRecursive(s.tree.Root)
	}

	if s.view != nil && state != nil {
		s.view.RestoreOpenness(state)
	}

	s.logger.WithFields(logrus.Fields{
		"changed":   strings.Join(plan.Changed, ","),
		"reordered": len(plan.Reordered),
	}).Debug("Settings updated")

	if s.saver != nil {
		if err := s.saver.Save(s.tree); err != nil {
			return plan, fmt.Errorf("persist settings: %w", err)
		}
	}
	return plan, nil
}

func (s *Sorter) plan(st tree.Settings) map[*tree.Node][]*tree.Node {
	orders := make(map[*tree.Node][]*tree.Node)
	for _, dir := range s.tree.Directories() {
		orders[dir] = s.sorted(st, dir)
	}
	return orders
}

func (s *Sorter) apply(orders map[*tree.Node][]*tree.Node) ([]*tree.Node, error) {
	var reordered []*tree.Node
	// Iterate in tree order so notifications arrive parent first.
	for _, dir := range s.tree.Directories() {
		ordered, ok := orders[dir]
		if !ok {
			continue
		}
		changed, err := s.tree.SetChildren(dir, ordered)
		if err != nil {
			return reordered, err
		}
		if changed {
			reordered = append(reordered, dir)
		}
	}
	return reordered, nil
}

func (s *Sorter) sorted(st tree.Settings, dir *tree.Node) []*tree.Node {
	children := dir.Children()
	sort.SliceStable(children, func(i, j int) bool {
		return s.compare(st, children[i], children[j]) < 0
	})
	return children
}

func (s *Sorter) sourcePath(n *tree.Node) string {
	return filepath.Join(s.projectDir, filepath.FromSlash(tree.SourcePath(n)))
}

// size returns the byte size of n's backing file, 0 when it is missing.
func (s *Sorter) size(n *tree.Node) int64 {
	info, err := s.fs.Stat(s.sourcePath(n))
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

func (s *Sorter) exists(n *tree.Node) bool {
	ok, err := afero.Exists(s.fs, s.sourcePath(n))
	return err == nil && ok
}

func compareFold(a, b string) int {
	return strings.Compare(cases.Fold().String(a), cases.Fold().String(b))
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}
