package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Post is a single sanitized sample kept in the corpus. Source names where
// the post came from, such as a fediverse account id or "import".
// CreatedAt is stored with millisecond precision.
type Post struct {
	ID        string
	Source    string
	Content   string
	CreatedAt time.Time
}

// SetupSchema initializes the corpus table in the provided database. It is
// idempotent and safe to call on an already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaPosts = `
CREATE TABLE IF NOT EXISTS corpus_posts (
    post_id    TEXT PRIMARY KEY,
    source     TEXT NOT NULL,
    content    TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`
		schemaIndex = `
CREATE INDEX IF NOT EXISTS corpus_posts_source_created ON corpus_posts (source, created_at);
`
		schemaCursors = `
CREATE TABLE IF NOT EXISTS corpus_cursors (
    name  TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaPosts); err != nil {
		return fmt.Errorf("could not create corpus schema: %w", err)
	}
	if _, err = tx.Exec(schemaIndex); err != nil {
		return fmt.Errorf("could not create corpus index: %w", err)
	}
	if _, err = tx.Exec(schemaCursors); err != nil {
		return fmt.Errorf("could not create cursor schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store is a sqlite-backed collection of raw posts, keyed by post id.
type Store struct {
	db            *sql.DB
	stmtInsert    *sql.Stmt
	stmtHas       *sql.Stmt
	stmtCount     *sql.Stmt
	stmtLatestID  *sql.Stmt
	stmtRemove    *sql.Stmt
	stmtAllByTime *sql.Stmt
	stmtCursor    *sql.Stmt
	stmtSetCursor *sql.Stmt
	logger        *slog.Logger
}

// NewStore creates a Store and pre-compiles its SQL statements. SetupSchema
// must have been called on db first.
func NewStore(db *sql.DB) (*Store, error) {
	stmtInsert, err := db.Prepare(`INSERT OR IGNORE INTO corpus_posts (post_id, source, content, created_at) VALUES (?, ?, ?, ?);`)
	if err != nil {
		return nil, err
	}

	stmtHas, err := db.Prepare(`SELECT COUNT(*) FROM corpus_posts WHERE post_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtCount, err := db.Prepare(`SELECT COUNT(*) FROM corpus_posts;`)
	if err != nil {
		return nil, err
	}

	stmtLatestID, err := db.Prepare(`SELECT post_id FROM corpus_posts WHERE source = ? ORDER BY created_at DESC, post_id DESC LIMIT 1;`)
	if err != nil {
		return nil, err
	}

	stmtRemove, err := db.Prepare(`DELETE FROM corpus_posts WHERE post_id = ?;`)
	if err != nil {
		return nil, err
	}

	stmtAllByTime, err := db.Prepare(`SELECT post_id, source, content, created_at FROM corpus_posts ORDER BY created_at, post_id;`)
	if err != nil {
		return nil, err
	}

	stmtCursor, err := db.Prepare(`SELECT value FROM corpus_cursors WHERE name = ?;`)
	if err != nil {
		return nil, err
	}

	stmtSetCursor, err := db.Prepare(`INSERT INTO corpus_cursors (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value;`)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:            db,
		stmtInsert:    stmtInsert,
		stmtHas:       stmtHas,
		stmtCount:     stmtCount,
		stmtLatestID:  stmtLatestID,
		stmtRemove:    stmtRemove,
		stmtAllByTime: stmtAllByTime,
		stmtCursor:    stmtCursor,
		stmtSetCursor: stmtSetCursor,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// Close releases all prepared SQL statements held by the Store.
func (s *Store) Close() {
	_ = s.stmtInsert.Close()
	_ = s.stmtHas.Close()
	_ = s.stmtCount.Close()
	_ = s.stmtLatestID.Close()
	_ = s.stmtRemove.Close()
	_ = s.stmtAllByTime.Close()
	_ = s.stmtCursor.Close()
	_ = s.stmtSetCursor.Close()
}

// SetLogger sets the logger for the Store. By default, all logs are discarded.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Add stores a post. It reports false, with no error, if a post with the same
// id is already stored; the existing row is left untouched.
func (s *Store) Add(ctx context.Context, post Post) (bool, error) {
	if post.ID == "" {
		return false, errors.New("corpus: post id must not be empty")
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	res, err := s.stmtInsert.ExecContext(ctx, post.ID, post.Source, post.Content, post.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("could not insert post '%s': %w", post.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		s.logger.DebugContext(ctx, "Post stored",
			slog.String("post_id", post.ID),
			slog.String("source", post.Source),
		)
	}
	return n > 0, nil
}

// Has reports whether a post with the given id is stored.
func (s *Store) Has(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.stmtHas.QueryRowContext(ctx, id).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// Count returns the number of stored posts.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.stmtCount.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LatestID returns the id of the most recent post from source, or "" if
// nothing from that source is stored.
func (s *Store) LatestID(ctx context.Context, source string) (string, error) {
	var id string
	err := s.stmtLatestID.QueryRowContext(ctx, source).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not get latest post for source '%s': %w", source, err)
	}
	return id, nil
}

// Remove deletes a post. Removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	if _, err := s.stmtRemove.ExecContext(ctx, id); err != nil {
		return fmt.Errorf("could not remove post '%s': %w", id, err)
	}
	return nil
}

// Each calls fn for every stored post, oldest first. Iteration stops at the
// first error returned by fn, which is passed back to the caller.
func (s *Store) Each(ctx context.Context, fn func(Post) error) error {
	rows, err := s.stmtAllByTime.QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("could not query corpus: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	for rows.Next() {
		var post Post
		var createdAt int64
		if err = rows.Scan(&post.ID, &post.Source, &post.Content, &createdAt); err != nil {
			return err
		}
		post.CreatedAt = time.UnixMilli(createdAt)
		if err = fn(post); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Cursor returns the value saved under name, or "" if none was saved.
// Cursors record how far a remote timeline has been read, independently of
// which posts were kept.
func (s *Store) Cursor(ctx context.Context, name string) (string, error) {
	var value string
	err := s.stmtCursor.QueryRowContext(ctx, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not read cursor '%s': %w", name, err)
	}
	return value, nil
}

// SetCursor saves value under name, replacing any previous value.
func (s *Store) SetCursor(ctx context.Context, name, value string) error {
	if _, err := s.stmtSetCursor.ExecContext(ctx, name, value); err != nil {
		return fmt.Errorf("could not save cursor '%s': %w", name, err)
	}
	return nil
}
