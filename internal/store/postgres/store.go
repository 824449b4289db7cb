package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
	"github.com/shrimpsizemoose/lussekatt/internal/store"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			out := query
			for i := 1; strings.Contains(out, "?"); i++ {
				out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
			}
			return out
		},
	}}

	return s, nil
}

func (s *PostgresStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, nil)
}

// CreateSubmission inserts one draft row, guarding inside the transaction
// against a concurrent second draft for the same (course, assignment, uid).
func (s *PostgresStore) CreateSubmission(sub *models.Submission) (int64, error) {
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

	var id int64
	err = tx.QueryRow(`
		INSERT INTO submissions (course_id, assignment_id, uid, content, submitted, state)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING submission_id
	`, sub.CourseID, sub.AssignmentID, sub.UID, sub.Content, sub.Submitted, sub.State).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create submission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit submission: %w", err)
	}

	sub.SubmissionID = id
	return id, nil
}

func (s *PostgresStore) CreateMessage(msg *models.Message) (int64, error) {
	if err := msg.Validate(); err != nil {
		return 0, fmt.Errorf("invalid message: %w", err)
	}

	var id int64
	err := s.DB.QueryRow(`
		INSERT INTO messages (course_id, uid, mimetype, priority, sent_from, sent_to, subject, body, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING message_id
	`, msg.CourseID, msg.UID, msg.MimeType, msg.Priority, msg.SentFrom, msg.SentTo, msg.Subject, msg.Body, msg.Created).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to queue message: %w", err)
	}

	msg.MessageID = id
	return id, nil
}
