package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
	"github.com/shrimpsizemoose/lussekatt/internal/store"
)

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
	}}

	return s, nil
}

func (s *SQLiteStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, translateToSQLite)
}

// translateToSQLite converts Postgres SQL to SQLite dialect
func translateToSQLite(sql string) string {
	replacements := map[string]string{
		"BIGSERIAL PRIMARY KEY": "INTEGER PRIMARY KEY AUTOINCREMENT",
		"DOUBLE PRECISION":      "REAL",
		"now()":                 "CURRENT_TIMESTAMP",
		"VARCHAR(16)":           "TEXT",
		"VARCHAR(32)":           "TEXT",
	}
	result := sql
	for from, to := range replacements {
		result = strings.ReplaceAll(result, from, to)
	}
	return result
}

func (s *SQLiteStore) CreateSubmission(sub *models.Submission) (int64, error) {
	if err := sub.Validate(); err != nil {
		return 0, fmt.Errorf("invalid submission: %w", err)
	}

	tx, err := s.DB.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if sub.State == models.SubmissionDraft {
		n, err := s.CountDraftsTx(tx, sub)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, store.ErrDraftExists
		}
	}

	res, err := tx.Exec(`
		INSERT INTO submissions (course_id, assignment_id, uid, content, submitted, state)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.CourseID, sub.AssignmentID, sub.UID, sub.Content, sub.Submitted, sub.State)
	if err != nil {
		return 0, fmt.Errorf("failed to create submission: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read submission id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit submission: %w", err)
	}

	sub.SubmissionID = id
	return id, nil
}

func (s *SQLiteStore) CreateMessage(msg *models.Message) (int64, error) {
	if err := msg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid message: %w", err)
	}

	res, err := s.DB.Exec(`
		INSERT INTO messages (course_id, uid, mimetype, priority, sent_from, sent_to, subject, body, created)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.CourseID, msg.UID, msg.MimeType, msg.Priority, msg.SentFrom, msg.SentTo, msg.Subject, msg.Body, msg.Created)
	if err != nil {
		return 0, fmt.Errorf("failed to queue message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}

	msg.MessageID = id
	return id, nil
}
