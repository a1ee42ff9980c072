// Package store persists extraction runs and their flattened records to a
// local SQLite database, as an alternative to file sinks.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"chatdump/internal/extract"
)

//go:embed schema.sql
var schemaFS embed.FS

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"

// Store provides database operations for chatdump.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema() error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// withTx executes fn within a database transaction. If fn returns an error,
// the transaction is rolled back; otherwise it is committed.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// StartRun records a new extraction run and returns its id.
func (s *Store) StartRun(accountID, since, until string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (account_id, since, until, started_at) VALUES (?, ?, ?, ?)`,
		accountID, nullIfEmpty(since), nullIfEmpty(until), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("start run: %w", err)
	}
	return res.LastInsertId()
}

// CompleteRun stores the final statistics of a run.
func (s *Store) CompleteRun(runID int64, summary *extract.Summary) error {
	_, err := s.db.Exec(
		`UPDATE runs
		 SET completed_at = ?, conversations = ?, failed_conversations = ?,
		     records = ?, duplicates = ?
		 WHERE id = ?`,
		time.Now().UTC(), summary.Conversations, summary.FailedConversations,
		summary.Records, summary.Duplicates, runID,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// InsertRecords stores the flattened records of a run in one transaction.
func (s *Store) InsertRecords(runID int64, records []extract.Record) error {
	return s.withTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(
			`INSERT INTO messages (
				run_id, conversation_id, customer_name, customer_email,
				channel_name, message_type, sender_name, content,
				created_at_iso, agent_email
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			_, err := stmt.Exec(
				runID, rec.ConversationID, rec.CustomerName, rec.CustomerEmail,
				rec.ChannelName, rec.MessageType, rec.SenderName, rec.Content,
				nullablePtr(rec.CreatedAtISO), nullablePtr(rec.AgentEmail),
			)
			if err != nil {
				return fmt.Errorf("insert record (conversation %d): %w", rec.ConversationID, err)
			}
		}
		return nil
	})
}

// CountRecords returns the number of stored records for a run.
func (s *Store) CountRecords(runID int64) (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullablePtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
