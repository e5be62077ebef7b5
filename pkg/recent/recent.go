// Package recent keeps the bounded most-recently-used list of project files.
package recent

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
)

// MaxEntries bounds the list.
const MaxEntries = 10

// Entry is one remembered project.
type Entry struct {
	Path     string
	LastUsed time.Time
}

// List manages the recent projects database
type List struct {
	db      *sql.DB
	dataDir string
	fs      afero.Fs
	now     func() time.Time
}

// Open opens or creates the recent projects database in dataDir. The database
// lives on the OS filesystem, so dataDir is created there; fs is only used to
// check whether remembered project files still exist.
func Open(dataDir string, fs afero.Fs) (*List, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "recent.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	l := &List{
		db:      db,
		dataDir: dataDir,
		fs:      fs,
		now:     time.Now,
	}

	if err := l.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize recent list: %w", err)
	}

	return l, nil
}

// init creates the database schema
func (l *List) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recent_projects (
		path TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_recent_seq ON recent_projects(seq);
	`

	_, err := l.db.Exec(schema)
	return err
}

// Add moves path to the front of the list, dropping it from its previous
// position and trimming the list to MaxEntries.
func (l *List) Add(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	tx, err := l.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
	INSERT OR REPLACE INTO recent_projects (path, seq, last_used)
	VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM recent_projects), ?)
	`
	if _, err := tx.Exec(query, absPath, l.now()); err != nil {
		return fmt.Errorf("record %s: %w", absPath, err)
	}

	prune := `
	DELETE FROM recent_projects WHERE path NOT IN (
		SELECT path FROM recent_projects ORDER BY seq DESC LIMIT ?
	)
	`
	if _, err := tx.Exec(prune, MaxEntries); err != nil {
		return fmt.Errorf("trim recent list: %w", err)
	}

	return tx.Commit()
}

// List returns the remembered projects, most recent first. Entries whose
// file no longer exists are removed.
func (l *List) List() ([]Entry, error) {
	rows, err := l.db.Query(`
	SELECT path, last_used FROM recent_projects ORDER BY seq DESC
	`)
	if err != nil {
		return nil, err
	}

	var entries, missing []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.LastUsed); err != nil {
			rows.Close()
			return nil, err
		}
		if ok, _ := afero.Exists(l.fs, e.Path); ok {
			entries = append(entries, e)
		} else {
			missing = append(missing, e)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, e := range missing {
		if err := l.Remove(e.Path); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Remove forgets path.
func (l *List) Remove(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	_, err = l.db.Exec("DELETE FROM recent_projects WHERE path = ?", absPath)
	return err
}

// Close closes the recent projects database
func (l *List) Close() error {
	return l.db.Close()
}
