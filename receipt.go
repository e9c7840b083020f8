package flowsetup

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotInstalled reports a lookup for an application with no receipt.
var ErrNotInstalled = errors.New("application is not installed")

// Receipt records one completed installation: where it went and everything
// it created, so that uninstallation can undo exactly that and nothing else.
type Receipt struct {
	ID        string
	App       string
	Version   string
	Publisher string
	Dir       string
	Scope     Scope
	CreatedAt time.Time
	// Files lists the files the installer placed. Entries marked Keep
	// survive uninstallation.
	Files []ReceiptFile
	// Dirs lists the directories the installer created, in creation order.
	Dirs []string
	// Shortcuts lists the launcher entry files the installer wrote.
	Shortcuts []string
}

// ReceiptFile is one file placed by the installer.
type ReceiptFile struct {
	Path   string
	SHA256 string
	Size   int64
	Keep   bool
}

// ReceiptStore is the per-user database of install receipts.
type ReceiptStore struct {
	db *sql.DB
}

// DefaultReceiptsPath returns the per-user receipts database location.
func DefaultReceiptsPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving user config directory: %w", err)
	}
	return filepath.Join(configDir, "flowsetup", "receipts.db"), nil
}

// OpenReceipts opens the receipts database at path, creating it and its
// directory when missing.
func OpenReceipts(path string) (*ReceiptStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating receipts directory: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening receipts database: %w", err)
	}
	// The store is single-user; one connection avoids write contention.
	db.SetMaxOpenConns(1)
	store := &ReceiptStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ReceiptStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS installs (
		id         TEXT PRIMARY KEY,
		app        TEXT NOT NULL UNIQUE,
		version    TEXT NOT NULL,
		publisher  TEXT NOT NULL DEFAULT '',
		dir        TEXT NOT NULL,
		scope      TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS install_files (
		install_id TEXT NOT NULL REFERENCES installs(id) ON DELETE CASCADE,
		path       TEXT NOT NULL,
		sha256     TEXT NOT NULL,
		size       INTEGER NOT NULL,
		keep       INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS install_dirs (
		install_id TEXT NOT NULL REFERENCES installs(id) ON DELETE CASCADE,
		path       TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS install_shortcuts (
		install_id TEXT NOT NULL REFERENCES installs(id) ON DELETE CASCADE,
		path       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_install_files_install ON install_files(install_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initializing receipts schema: %w", err)
	}
	return nil
}

// Record stores a receipt, replacing any earlier receipt for the same app.
// A missing ID and timestamp are filled in.
func (s *ReceiptStore) Record(r *Receipt) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM installs WHERE app = ?`, r.App); err != nil {
		return err
	}
	_, err = tx.Exec(
		`INSERT INTO installs (id, app, version, publisher, dir, scope, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.App, r.Version, r.Publisher, r.Dir, string(r.Scope), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording install: %w", err)
	}
	for _, f := range r.Files {
		_, err = tx.Exec(
			`INSERT INTO install_files (install_id, path, sha256, size, keep) VALUES (?, ?, ?, ?, ?)`,
			r.ID, f.Path, f.SHA256, f.Size, f.Keep,
		)
		if err != nil {
			return fmt.Errorf("recording file %s: %w", f.Path, err)
		}
	}
	for _, dir := range r.Dirs {
		if _, err := tx.Exec(`INSERT INTO install_dirs (install_id, path) VALUES (?, ?)`, r.ID, dir); err != nil {
			return fmt.Errorf("recording directory %s: %w", dir, err)
		}
	}
	for _, shortcut := range r.Shortcuts {
		if _, err := tx.Exec(`INSERT INTO install_shortcuts (install_id, path) VALUES (?, ?)`, r.ID, shortcut); err != nil {
			return fmt.Errorf("recording shortcut %s: %w", shortcut, err)
		}
	}
	return tx.Commit()
}

// Lookup returns the receipt for an app, or ErrNotInstalled.
func (s *ReceiptStore) Lookup(app string) (*Receipt, error) {
	row := s.db.QueryRow(
		`SELECT id, app, version, publisher, dir, scope, created_at FROM installs WHERE app = ?`, app)
	return s.scanReceipt(row, app)
}

// LookupByDir returns the receipt whose install directory is dir. The
// uninstaller placed in an install directory identifies its app this way.
func (s *ReceiptStore) LookupByDir(dir string) (*Receipt, error) {
	row := s.db.QueryRow(
		`SELECT id, app, version, publisher, dir, scope, created_at FROM installs WHERE dir = ?`, dir)
	return s.scanReceipt(row, dir)
}

func (s *ReceiptStore) scanReceipt(row *sql.Row, what string) (*Receipt, error) {
	var r Receipt
	var scope string
	err := row.Scan(&r.ID, &r.App, &r.Version, &r.Publisher, &r.Dir, &scope, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotInstalled)
	}
	if err != nil {
		return nil, err
	}
	r.Scope = Scope(scope)

	rows, err := s.db.Query(
		`SELECT path, sha256, size, keep FROM install_files WHERE install_id = ? ORDER BY rowid`, r.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var f ReceiptFile
		if err := rows.Scan(&f.Path, &f.SHA256, &f.Size, &f.Keep); err != nil {
			return nil, err
		}
		r.Files = append(r.Files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if r.Dirs, err = s.stringColumn(`SELECT path FROM install_dirs WHERE install_id = ? ORDER BY rowid`, r.ID); err != nil {
		return nil, err
	}
	if r.Shortcuts, err = s.stringColumn(`SELECT path FROM install_shortcuts WHERE install_id = ? ORDER BY rowid`, r.ID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReceiptStore) stringColumn(query, installID string) ([]string, error) {
	rows, err := s.db.Query(query, installID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// List returns the header of every receipt, sorted by app name. File, dir
// and shortcut details are left out; use Lookup for those.
func (s *ReceiptStore) List() ([]*Receipt, error) {
	rows, err := s.db.Query(
		`SELECT id, app, version, publisher, dir, scope, created_at FROM installs ORDER BY app`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var receipts []*Receipt
	for rows.Next() {
		var r Receipt
		var scope string
		if err := rows.Scan(&r.ID, &r.App, &r.Version, &r.Publisher, &r.Dir, &scope, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Scope = Scope(scope)
		receipts = append(receipts, &r)
	}
	return receipts, rows.Err()
}

// Remove deletes an app's receipt and all its detail rows.
func (s *ReceiptStore) Remove(app string) error {
	result, err := s.db.Exec(`DELETE FROM installs WHERE app = ?`, app)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", app, ErrNotInstalled)
	}
	return nil
}

// Close closes the underlying database.
func (s *ReceiptStore) Close() error { return s.db.Close() }
