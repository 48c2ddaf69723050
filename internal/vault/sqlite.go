// ABOUTME: SQLite implementation of the Vault interface using modernc.org/sqlite
// ABOUTME: Seals item data with XChaCha20-Poly1305 bound to the item address

package vault

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	_ "modernc.org/sqlite"
)

// KeySize is the length of the vault sealing key.
const KeySize = chacha20poly1305.KeySize

// SQLiteVault implements Vault on an SQLite database file.
type SQLiteVault struct {
	db     *sql.DB
	aead   cipher.AEAD
	logger *slog.Logger
}

// NewSQLiteVault opens (or creates) the vault database at path, sealing items with key.
// Parent directories are created if needed.
func NewSQLiteVault(path string, key []byte) (*SQLiteVault, error) {
	logger := slog.Default().With("component", "vault")

	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating vault directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// PRAGMAs below are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=1000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	v := &SQLiteVault{
		db:     db,
		aead:   aead,
		logger: logger,
	}

	if err := v.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := v.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite vault initialized", "path", path)
	return v, nil
}

func (v *SQLiteVault) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS items (
			service         TEXT NOT NULL,
			account         TEXT NOT NULL,
			nonce           BLOB NOT NULL,
			data            BLOB NOT NULL,
			backup_excluded INTEGER NOT NULL DEFAULT 0,
			created_at      TEXT NOT NULL,
			updated_at      TEXT NOT NULL,

			PRIMARY KEY (service, account)
		);

		CREATE INDEX IF NOT EXISTS idx_items_backup ON items(service, backup_excluded);
	`
	_, err := v.db.Exec(schema)
	return err
}

// runMigrations applies column additions for databases created by older builds.
// These are idempotent - safe to run multiple times.
func (v *SQLiteVault) runMigrations() error {
	migrations := []struct {
		check  string
		apply  string
		column string
	}{
		{
			check:  `SELECT 1 FROM pragma_table_info('items') WHERE name = 'accessibility'`,
			apply:  `ALTER TABLE items ADD COLUMN accessibility TEXT NOT NULL DEFAULT 'after_first_unlock'`,
			column: "accessibility",
		},
	}

	for _, m := range migrations {
		var exists int
		err := v.db.QueryRow(m.check).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking %s column: %w", m.column, err)
		}
		if _, err := v.db.Exec(m.apply); err != nil {
			return fmt.Errorf("adding %s column to items: %w", m.column, err)
		}
		v.logger.Info("applied migration", "column", m.column, "table", "items")
	}
	return nil
}

// Close closes the database connection.
func (v *SQLiteVault) Close() error {
	v.logger.Info("closing SQLite vault")
	return v.db.Close()
}

// Add stores a new item. Returns StatusDuplicateItem if the address is taken.
func (v *SQLiteVault) Add(ctx context.Context, item Item) error {
	nonce, sealed, err := v.seal(item.Query, item.Data)
	if err != nil {
		return statusError("add", StatusUnknown, err)
	}

	accessibility := item.Attributes.Accessibility
	if accessibility == "" {
		accessibility = AccessibleAfterFirstUnlock
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	query := `
		INSERT INTO items (service, account, nonce, data, backup_excluded, accessibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = v.db.ExecContext(ctx, query,
		item.Service,
		item.Account,
		nonce,
		sealed,
		boolToInt(item.Attributes.ExcludeFromBackup),
		string(accessibility),
		now,
		now,
	)
	if err != nil {
		return classify("add", err)
	}

	v.logger.Debug("added item", "item", item.Query.String(), "backup_excluded", item.Attributes.ExcludeFromBackup)
	return nil
}

// Update replaces the data of an existing item.
// Returns StatusItemNotFound if the item doesn't exist.
func (v *SQLiteVault) Update(ctx context.Context, q Query, data []byte) error {
	nonce, sealed, err := v.seal(q, data)
	if err != nil {
		return statusError("update", StatusUnknown, err)
	}

	query := `
		UPDATE items
		SET nonce = ?, data = ?, updated_at = ?
		WHERE service = ? AND account = ?
	`
	result, err := v.db.ExecContext(ctx, query,
		nonce,
		sealed,
		time.Now().UTC().Format(time.RFC3339Nano),
		q.Service,
		q.Account,
	)
	if err != nil {
		return classify("update", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return statusError("update", StatusUnknown, fmt.Errorf("getting rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return statusError("update", StatusItemNotFound, nil)
	}

	v.logger.Debug("updated item", "item", q.String(), "size", len(data))
	return nil
}

// Delete removes an item. Returns StatusItemNotFound if the item doesn't exist.
func (v *SQLiteVault) Delete(ctx context.Context, q Query) error {
	result, err := v.db.ExecContext(ctx, `DELETE FROM items WHERE service = ? AND account = ?`, q.Service, q.Account)
	if err != nil {
		return classify("delete", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return statusError("delete", StatusUnknown, fmt.Errorf("getting rows affected: %w", err))
	}
	if rowsAffected == 0 {
		return statusError("delete", StatusItemNotFound, nil)
	}

	v.logger.Debug("deleted item", "item", q.String())
	return nil
}

// Copy returns the item at q.
// Returns StatusItemNotFound if it doesn't exist and StatusIntegrity if it cannot be opened.
func (v *SQLiteVault) Copy(ctx context.Context, q Query) (Item, error) {
	query := `
		SELECT nonce, data, backup_excluded, accessibility
		FROM items
		WHERE service = ? AND account = ?
	`

	var nonce, sealed []byte
	var excluded int
	var accessibility string
	err := v.db.QueryRowContext(ctx, query, q.Service, q.Account).Scan(&nonce, &sealed, &excluded, &accessibility)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, statusError("copy", StatusItemNotFound, nil)
	}
	if err != nil {
		return Item{}, classify("copy", err)
	}

	data, err := v.open(q, nonce, sealed)
	if err != nil {
		return Item{}, statusError("copy", StatusIntegrity, err)
	}

	return Item{
		Query: q,
		Data:  data,
		Attributes: Attributes{
			Accessibility:     Accessibility(accessibility),
			ExcludeFromBackup: excluded != 0,
		},
	}, nil
}

// BackupItems lists the items of service that backups may copy.
func (v *SQLiteVault) BackupItems(ctx context.Context, service string) ([]Item, error) {
	query := `
		SELECT account, nonce, data, accessibility
		FROM items
		WHERE service = ? AND backup_excluded = 0
		ORDER BY account
	`
	rows, err := v.db.QueryContext(ctx, query, service)
	if err != nil {
		return nil, classify("backup items", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var account, accessibility string
		var nonce, sealed []byte
		if err := rows.Scan(&account, &nonce, &sealed, &accessibility); err != nil {
			return nil, statusError("backup items", StatusUnknown, fmt.Errorf("scanning item row: %w", err))
		}
		q := Query{Service: service, Account: account}
		data, err := v.open(q, nonce, sealed)
		if err != nil {
			return nil, statusError("backup items", StatusIntegrity, fmt.Errorf("%s: %w", q, err))
		}
		items = append(items, Item{
			Query:      q,
			Data:       data,
			Attributes: Attributes{Accessibility: Accessibility(accessibility)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, classify("backup items", err)
	}
	return items, nil
}

func (v *SQLiteVault) seal(q Query, data []byte) (nonce, sealed []byte, err error) {
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}
	return nonce, v.aead.Seal(nil, nonce, data, additionalData(q)), nil
}

func (v *SQLiteVault) open(q Query, nonce, sealed []byte) ([]byte, error) {
	if len(nonce) != chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("nonce is %d bytes", len(nonce))
	}
	data, err := v.aead.Open(nil, nonce, sealed, additionalData(q))
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []byte{}
	}
	return data, nil
}

func additionalData(q Query) []byte {
	return []byte(q.Service + "\x00" + q.Account)
}

// classify maps driver errors onto vault status codes.
func classify(op string, err error) error {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "UNIQUE constraint failed"),
		strings.Contains(errStr, "constraint failed"):
		return statusError(op, StatusDuplicateItem, err)
	case strings.Contains(errStr, "database is locked"),
		strings.Contains(errStr, "SQLITE_BUSY"),
		strings.Contains(errStr, "database table is locked"):
		return statusError(op, StatusInteractionNotAllowed, err)
	default:
		return statusError(op, StatusUnknown, err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// LoadOrCreateKey reads the sealing key at path, generating and saving a new
// one with owner-only permissions when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != KeySize {
			return nil, fmt.Errorf("key file %s is %d bytes, want %d", path, len(key), KeySize)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key = make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key directory: %w", err)
	}

	// Write to a temporary file and link it into place so a concurrent
	// reader never sees a partial key.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vault-key-*")
	if err != nil {
		return nil, fmt.Errorf("creating key file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(key); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("writing key file: %w", err)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return LoadOrCreateKey(path)
		}
		return nil, fmt.Errorf("installing key file: %w", err)
	}
	return key, nil
}

var _ Vault = (*SQLiteVault)(nil)
