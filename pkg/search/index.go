package search

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/grovetools/wdtp/pkg/frontmatter"
	"github.com/grovetools/wdtp/pkg/tree"
)

// Document is one indexed document.
type Document struct {
	Path     string // Node path, e.g. posts/hello
	Identity string
	Title    string
	Keywords string
	Content  string
	Modified string
}

// Result is one search hit.
type Result struct {
	Path     string
	Identity string
	Title    string
	Snippet  string
}

// Index manages the search index
type Index struct {
	db     *sql.DB
	useFTS bool
}

// NewIndex creates a new search index
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	idx := &Index{db: db}
	if err := idx.init(); err != nil {
		db.Close()
		return nil, err
	}

	return idx, nil
}

// init creates the database schema
func (idx *Index) init() error {
	// First, check if FTS5 is available
	idx.useFTS = idx.checkFTS5Support()

	metaSchema := `
	CREATE TABLE IF NOT EXISTS docs_meta (
		path TEXT PRIMARY KEY,
		identity TEXT,
		title TEXT,
		keywords TEXT,
		content TEXT,
		modified_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_docs_meta_identity ON docs_meta(identity);
	`

	if _, err := idx.db.Exec(metaSchema); err != nil {
		return err
	}

	if idx.useFTS {
		ftsSchema := `
		CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
			path UNINDEXED,
			title,
			keywords,
			content,
			tokenize = 'porter unicode61'
		);
		`

		if _, err := idx.db.Exec(ftsSchema); err != nil {
			// If FTS creation fails, disable FTS and continue
			idx.useFTS = false
		}
	}

	return nil
}

// checkFTS5Support checks if FTS5 module is available
func (idx *Index) checkFTS5Support() bool {
	_, err := idx.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS fts5_test USING fts5(content)")
	if err != nil {
		return false
	}

	_, _ = idx.db.Exec("DROP TABLE IF EXISTS fts5_test")
	return true
}

// IndexProject replaces the index content with every document of t. Sources
// are read from docs/ below projectDir; documents whose source is missing are
// indexed by title only.
func (idx *Index) IndexProject(t *tree.Tree, fs afero.Fs, projectDir string) (int, error) {
	if err := idx.clear(); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range t.Documents() {
		doc := Document{
			Path:     tree.ResolvePath(n),
			Identity: n.Identity,
			Title:    n.DisplayTitle(),
			Keywords: n.Keywords,
			Modified: n.Modified,
		}
		src := filepath.Join(projectDir, filepath.FromSlash(tree.SourcePath(n)))
		if data, err := afero.ReadFile(fs, src); err == nil {
			doc.Content = frontmatter.Strip(string(data))
		}
		if err := idx.IndexDocument(doc); err != nil {
			return count, fmt.Errorf("index %s: %w", doc.Path, err)
		}
		count++
	}
	return count, nil
}

// IndexDocument indexes or reindexes a document
func (idx *Index) IndexDocument(doc Document) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if idx.useFTS {
		if _, err = tx.Exec("DELETE FROM docs_fts WHERE path = ?", doc.Path); err != nil {
			return err
		}
	}
	if _, err = tx.Exec("DELETE FROM docs_meta WHERE path = ?", doc.Path); err != nil {
		return err
	}

	if idx.useFTS {
		_, err = tx.Exec(`
			INSERT INTO docs_fts (path, title, keywords, content)
			VALUES (?, ?, ?, ?)
		`, doc.Path, doc.Title, doc.Keywords, doc.Content)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(`
		INSERT INTO docs_meta (path, identity, title, keywords, content, modified_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, doc.Path, doc.Identity, doc.Title, doc.Keywords, doc.Content, doc.Modified)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Search performs a full-text search
func (idx *Index) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	if idx.useFTS {
		return idx.searchWithFTS(query, limit)
	}
	return idx.searchWithoutFTS(query, limit)
}

// searchWithFTS performs search using FTS5
func (idx *Index) searchWithFTS(query string, limit int) ([]Result, error) {
	rows, err := idx.db.Query(`
		SELECT
			f.path, m.identity, m.title,
			snippet(docs_fts, 3, '[', ']', '...', 16) as snippet
		FROM docs_fts f
		JOIN docs_meta m ON f.path = m.path
		WHERE docs_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.Path, &r.Identity, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchWithoutFTS performs search using LIKE queries on metadata table
func (idx *Index) searchWithoutFTS(query string, limit int) ([]Result, error) {
	searchPattern := "%" + strings.ReplaceAll(query, " ", "%") + "%"
	rows, err := idx.db.Query(`
		SELECT path, identity, title, content
		FROM docs_meta
		WHERE title LIKE ? OR keywords LIKE ? OR content LIKE ?
		ORDER BY modified_at DESC, path
		LIMIT ?
	`, searchPattern, searchPattern, searchPattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var content string
		if err := rows.Scan(&r.Path, &r.Identity, &r.Title, &content); err != nil {
			return nil, err
		}
		r.Snippet = snippet(content, query, 40)
		results = append(results, r)
	}
	return results, rows.Err()
}

// RemoveDocument removes a document from the index
func (idx *Index) RemoveDocument(path string) error {
	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if idx.useFTS {
		if _, err = tx.Exec("DELETE FROM docs_fts WHERE path = ?", path); err != nil {
			return err
		}
	}
	if _, err = tx.Exec("DELETE FROM docs_meta WHERE path = ?", path); err != nil {
		return err
	}

	return tx.Commit()
}

func (idx *Index) clear() error {
	if idx.useFTS {
		if _, err := idx.db.Exec("DELETE FROM docs_fts"); err != nil {
			return err
		}
	}
	_, err := idx.db.Exec("DELETE FROM docs_meta")
	return err
}

// Close closes the index
func (idx *Index) Close() error {
	return idx.db.Close()
}

// ftsQuery quotes every term so user input never hits the FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// snippet returns the text around the first case-insensitive match of query.
func snippet(content, query string, radius int) string {
	lower := strings.ToLower(content)
	i := strings.Index(lower, strings.ToLower(query))
	if i < 0 || i+len(query) > len(content) {
		return ""
	}
	start, end := i-radius, i+len(query)+radius
	prefix, suffix := "...", "..."
	if start <= 0 {
		start, prefix = 0, ""
	}
	if end >= len(content) {
		end, suffix = len(content), ""
	}
	return prefix + strings.Join(strings.Fields(content[start:end]), " ") + suffix
}
