package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
)

// ErrDraftExists guards the one-draft-per-triple invariant: a fetch must
// never register a second draft while a previous one awaits evaluation.
var ErrDraftExists = errors.New("draft submission already exists")

type Store interface {
	Close() error
	ApplyMigrations(dir string) error

	ListRetrievalAssignments(now time.Time) ([]models.Assignment, error)
	GetAssignment(courseID, assignmentID string) (*models.Assignment, error)
	GetEnrollee(courseID, uid string) (*models.Enrollee, error)
	ListActiveEnrollees(courseID string) ([]models.Enrollee, error)
	ListSubmissions(courseID, assignmentID, uid string) ([]models.Submission, error)
	CreateSubmission(sub *models.Submission) (int64, error)

	GetTemplate(templateID string) (*models.MessageTemplate, error)
	GetRecipient(courseID, uid string) (*models.Recipient, error)
	CreateMessage(msg *models.Message) (int64, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

// ListRetrievalAssignments returns every git-retrieval assignment that has
// opened by now, joined with its course's closing date. Window arithmetic
// stays in Go; this only filters on handler kind and opening time.
func (s *BaseStore) ListRetrievalAssignments(now time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	query := s.Converter(`
		SELECT
			assignments.course_id,
			assignments.assignment_id,
			assignments.name,
			assignments.handler,
			assignments.directives,
			assignments.opens,
			assignments.deadline,
			assignments.latepenalty,
			assignments.retries,
			courses.closes AS course_closes
		FROM assignments
		JOIN courses ON assignments.course_id = courses.course_id
		WHERE assignments.handler = ?
		AND COALESCE(assignments.opens, courses.opens) < ?
		ORDER BY assignments.course_id, assignments.assignment_id
	`)

	err := s.DB.Select(&assignments, query, models.HandlerGitRetrieval, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list retrieval assignments: %w", err)
	}
	return assignments, nil
}

func (s *BaseStore) GetAssignment(courseID, assignmentID string) (*models.Assignment, error) {
	var assignment models.Assignment
	query := s.Converter(`
		SELECT
			assignments.course_id,
			assignments.assignment_id,
			assignments.name,
			assignments.handler,
			assignments.directives,
			assignments.opens,
			assignments.deadline,
			assignments.latepenalty,
			assignments.retries,
			courses.closes AS course_closes
		FROM assignments
		JOIN courses ON assignments.course_id = courses.course_id
		WHERE assignments.course_id = ?
		AND assignments.assignment_id = ?
	`)

	err := s.DB.Get(&assignment, query, courseID, assignmentID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assignment (%s, %s) not found", courseID, assignmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &assignment, nil
}

func (s *BaseStore) GetEnrollee(courseID, uid string) (*models.Enrollee, error) {
	var enrollee models.Enrollee
	query := s.Converter(`
		SELECT course_id, uid, lastname, firstname, email, status,
		       notifications, github_account, github_repository
		FROM enrollees
		WHERE course_id = ?
		AND uid = ?
	`)

	err := s.DB.Get(&enrollee, query, courseID, uid)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("enrollee (%s, %s) not found", courseID, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollee: %w", err)
	}
	return &enrollee, nil
}

func (s *BaseStore) ListActiveEnrollees(courseID string) ([]models.Enrollee, error) {
	var enrollees []models.Enrollee
	query := s.Converter(`
		SELECT course_id, uid, lastname, firstname, email, status,
		       notifications, github_account, github_repository
		FROM enrollees
		WHERE course_id = ?
		AND status = ?
		ORDER BY uid
	`)

	err := s.DB.Select(&enrollees, query, courseID, models.EnrolleeStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollees: %w", err)
	}
	return enrollees, nil
}

func (s *BaseStore) ListSubmissions(courseID, assignmentID, uid string) ([]models.Submission, error) {
	var submissions []models.Submission
	query := s.Converter(`
		SELECT submission_id, course_id, assignment_id, uid, content,
		       submitted, state, evaluator, score
		FROM submissions
		WHERE course_id = ?
		AND assignment_id = ?
		AND uid = ?
		ORDER BY submitted ASC
	`)

	err := s.DB.Select(&submissions, query, courseID, assignmentID, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

func (s *BaseStore) GetTemplate(templateID string) (*models.MessageTemplate, error) {
	var template models.MessageTemplate
	query := s.Converter(`
		SELECT template_id, mimetype, priority, subject, body
		FROM message_templates
		WHERE template_id = ?
	`)

	err := s.DB.Get(&template, query, templateID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message template %q not found", templateID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message template: %w", err)
	}
	return &template, nil
}

func (s *BaseStore) GetRecipient(courseID, uid string) (*models.Recipient, error) {
	var recipient models.Recipient
	query := s.Converter(`
		SELECT
			courses.course_id,
			courses.code AS course_code,
			enrollees.uid,
			COALESCE(courses.email, 'do-not-reply@utu.fi') AS sent_from,
			enrollees.email AS sent_to,
			enrollees.notifications
		FROM courses
		JOIN enrollees ON courses.course_id = enrollees.course_id
		WHERE courses.course_id = ?
		AND enrollees.uid = ?
	`)

	err := s.DB.Get(&recipient, query, courseID, uid)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("recipient (%s, %s) not found", courseID, uid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipient: %w", err)
	}
	return &recipient, nil
}

// CountDraftsTx is the draft guard shared by the dialect stores; it runs
// inside each CreateSubmission transaction.
func (s *BaseStore) CountDraftsTx(tx *sqlx.Tx, sub *models.Submission) (int, error) {
	var n int
	query := s.Converter(`
		SELECT COUNT(*)
		FROM submissions
		WHERE course_id = ?
		AND assignment_id = ?
		AND uid = ?
		AND state = ?
	`)
	err := tx.Get(&n, query, sub.CourseID, sub.AssignmentID, sub.UID, models.SubmissionDraft)
	if err != nil {
		return 0, fmt.Errorf("failed to count draft submissions: %w", err)
	}
	return n, nil
}
