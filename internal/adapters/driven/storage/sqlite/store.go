package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kbchat/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kbchat/internal/core/domain"
	"github.com/custodia-labs/kbchat/internal/core/ports/driven"
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "kbchat.db"

// Store is a SQLite database shared by the text store and the history store.
type Store struct {
	db   *sqlx.DB
	path string

	closeOnce sync.Once
	closeErr  error
}

// NewStore opens (creating if needed) the database at path and applies
// pending migrations. If path is empty, defaults to ~/.kbchat/data/kbchat.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".kbchat", "data", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL lets the history writer append while a query reads.
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection. It is safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
	})
	return s.closeErr
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// TextStore returns the chunk text store backed by this database.
func (s *Store) TextStore() driven.TextStore {
	return &textStore{store: s}
}

// HistoryStore returns the conversation history store backed by this database.
func (s *Store) HistoryStore() driven.HistoryStore {
	return &historyStore{store: s}
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion() (int, error) {
	var version int
	if err := s.db.Get(&version, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"); err != nil {
		return 0, fmt.Errorf("getting schema version: %w", err)
	}
	return version, nil
}

// migrate applies every NNN_name.up.sql file newer than the recorded version.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	currentVersion, err := s.SchemaVersion()
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// apply runs one migration and records its version in the same transaction.
func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Text Store ====================

// textStore implements driven.TextStore.
type textStore struct {
	store *Store
}

var _ driven.TextStore = (*textStore)(nil)

// Insert stores a chunk and returns its id. A chunk whose hash is already
// stored keeps its original id.
func (s *textStore) Insert(ctx context.Context, content string, metadata map[string]string) (string, error) {
	hash := metadata[domain.MetadataHash]
	id := uuid.New().String()

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO chunks (id, content, source, hash, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, id, content, metadata[domain.MetadataSource], nullString(hash), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("%w: inserting chunk: %w", domain.ErrTextStoreUnavailable, err)
	}
	if hash == "" {
		return id, nil
	}

	var stored string
	if err := s.store.db.GetContext(ctx, &stored, "SELECT id FROM chunks WHERE hash = ?", hash); err != nil {
		return "", fmt.Errorf("%w: reading chunk id: %w", domain.ErrTextStoreUnavailable, err)
	}
	return stored, nil
}

// Get returns the content of the chunk with the given id.
func (s *textStore) Get(ctx context.Context, id string) (string, error) {
	var content string
	err := s.store.db.GetContext(ctx, &content, "SELECT content FROM chunks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading chunk: %w", domain.ErrTextStoreUnavailable, err)
	}
	return content, nil
}

// Sources returns the distinct non-empty sources of stored chunks.
func (s *textStore) Sources(ctx context.Context) ([]string, error) {
	var sources []string
	err := s.store.db.SelectContext(ctx, &sources,
		"SELECT DISTINCT source FROM chunks WHERE source <> '' ORDER BY source")
	if err != nil {
		return nil, fmt.Errorf("%w: listing sources: %w", domain.ErrTextStoreUnavailable, err)
	}
	return sources, nil
}

// DeleteSource removes the chunks of source whose id is not in keep.
func (s *textStore) DeleteSource(ctx context.Context, source string, keep []string) error {
	query, args := "DELETE FROM chunks WHERE source = ?", []any{source}
	if len(keep) > 0 {
		var err error
		query, args, err = sqlx.In("DELETE FROM chunks WHERE source = ? AND id NOT IN (?)", source, keep)
		if err != nil {
			return fmt.Errorf("building delete: %w", err)
		}
	}
	if _, err := s.store.db.ExecContext(ctx, s.store.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("%w: deleting chunks of %s: %w", domain.ErrTextStoreUnavailable, source, err)
	}
	return nil
}

// Close closes the shared database.
func (s *textStore) Close() error {
	return s.store.Close()
}

// ==================== History Store ====================

// historyStore implements driven.HistoryStore.
type historyStore struct {
	store *Store
}

var _ driven.HistoryStore = (*historyStore)(nil)

// turnRow is the conversation_turns row layout.
type turnRow struct {
	UserID    string `db:"user_id"`
	Role      string `db:"role"`
	Content   string `db:"content"`
	CreatedAt int64  `db:"created_at"`
}

// Append records one conversation turn.
func (s *historyStore) Append(ctx context.Context, turn domain.Turn) error {
	if !turn.Role.IsValid() {
		return fmt.Errorf("%w: role %q", domain.ErrInvalidInput, turn.Role)
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	_, err := s.store.db.NamedExecContext(ctx, `
		INSERT INTO conversation_turns (user_id, role, content, created_at)
		VALUES (:user_id, :role, :content, :created_at)
	`, turnRow{
		UserID:    turn.UserID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		CreatedAt: turn.Timestamp.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("%w: appending turn: %w", domain.ErrHistoryUnavailable, err)
	}
	return nil
}

// Recent returns up to limit turns for userID, most recent first.
// Turns with the same timestamp are ordered by insertion.
func (s *historyStore) Recent(ctx context.Context, userID string, limit int) ([]domain.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	var rows []turnRow
	err := s.store.db.SelectContext(ctx, &rows, `
		SELECT user_id, role, content, created_at
		FROM conversation_turns
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: reading turns: %w", domain.ErrHistoryUnavailable, err)
	}

	turns := make([]domain.Turn, 0, len(rows))
	for _, r := range rows {
		turns = append(turns, domain.Turn{
			UserID:    r.UserID,
			Role:      domain.Role(r.Role),
			Content:   r.Content,
			Timestamp: time.Unix(0, r.CreatedAt),
		})
	}
	return turns, nil
}

// Close closes the shared database.
func (s *historyStore) Close() error {
	return s.store.Close()
}

// nullString converts empty strings to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
