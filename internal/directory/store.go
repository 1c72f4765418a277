package directory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"jirabridge/internal/bridge"
	logx "jirabridge/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Config configures the registry database.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Store is the sqlite-backed registry. One Store serves the whole process.
type Store struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the database, applying pragmas and migrations.
func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("directory: database path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &Store{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Link registers (or re-registers) a tracker username against a chat account.
// Re-linking an existing username moves it to the new chat.
func (s *Store) Link(ctx context.Context, username, displayName string, chatID int64) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("directory: username is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts(username, display_name, chat_id, linked_at) VALUES(?,?,?,?)
		 ON CONFLICT(username) DO UPDATE SET display_name=excluded.display_name, chat_id=excluded.chat_id, linked_at=excluded.linked_at`,
		username, displayName, chatID, time.Now().Format(time.RFC3339Nano),
	)
	return err
}

// Unlink removes a registration. It reports whether anything was removed.
func (s *Store) Unlink(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE username = ?`, strings.TrimSpace(username))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// UnlinkChat removes every registration pointing at a chat. Used when a user
// blocks the application and deliveries start failing permanently.
func (s *Store) UnlinkChat(ctx context.Context, chatID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE chat_id = ?`, chatID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindUserByUsername implements the pipeline's directory capability.
// (nil, nil) means the username is not linked.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*bridge.Account, error) {
	var acct bridge.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT username, display_name, chat_id FROM accounts WHERE username = ?`,
		username,
	).Scan(&acct.Username, &acct.DisplayName, &acct.ChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

// LinkedAccounts lists the registry, ordered by username. Used by the
// operator-facing list command.
func (s *Store) LinkedAccounts(ctx context.Context) ([]bridge.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, display_name, chat_id FROM accounts ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bridge.Account
	for rows.Next() {
		var acct bridge.Account
		if err := rows.Scan(&acct.Username, &acct.DisplayName, &acct.ChatID); err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// AccountsByChat lists the tracker usernames linked to one chat.
func (s *Store) AccountsByChat(ctx context.Context, chatID int64) ([]bridge.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, display_name, chat_id FROM accounts WHERE chat_id = ? ORDER BY username`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bridge.Account
	for rows.Next() {
		var acct bridge.Account
		if err := rows.Scan(&acct.Username, &acct.DisplayName, &acct.ChatID); err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// memberKey is the canonical conversation identifier for a member set.
func memberKey(members []string) string {
	sorted := append([]string(nil), members...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j] < sorted[j-1]; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return strings.Join(sorted, "|")
}

func (s *Store) findConversation(ctx context.Context, members []string) (*bridge.Conversation, error) {
	var chatID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT chat_id FROM conversations WHERE member_key = ?`, memberKey(members),
	).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &bridge.Conversation{ChatID: chatID}, nil
}

func (s *Store) createConversation(ctx context.Context, members []string, chatID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(member_key, chat_id, created_at) VALUES(?,?,?)
		 ON CONFLICT(member_key) DO NOTHING`,
		memberKey(members), chatID, time.Now().Format(time.RFC3339Nano),
	)
	return err
}

// AuditEntry records one delivery outcome.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time
	Event    string
	Issue    string
	Username string
	Tag      string
}

func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, event, issue, username, tag) VALUES(?,?,?,?,?)`,
		e.At.Format(time.RFC3339Nano), e.Event, nullStr(e.Issue), nullStr(e.Username), nullStr(e.Tag),
	)
	return err
}

// PruneAudit deletes audit rows older than the cutoff and reports how many.
func (s *Store) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit WHERE at < ?`, before.Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
