package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	SubmissionDraft    = "draft"
	SubmissionAccepted = "accepted"
	SubmissionRejected = "rejected"
)

type Submission struct {
	SubmissionID int64     `db:"submission_id" json:"submission_id"`
	CourseID     string    `db:"course_id" json:"course_id" validate:"required"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id" validate:"required"`
	UID          string    `db:"uid" json:"uid" validate:"required"`
	Content      string    `db:"content" json:"content"`
	Submitted    time.Time `db:"submitted" json:"submitted"`
	State        string    `db:"state" json:"state" validate:"required,oneof=draft accepted rejected"`
	Evaluator    *string   `db:"evaluator" json:"evaluator,omitempty"`
	Score        *int      `db:"score" json:"score,omitempty"`
}

func (s *Submission) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// BackdatedSubmissionTime is the timestamp written for fetched submissions.
// Fetches run just after midnight but record work for the day that just
// ended, so the row is stamped at the very end of the previous calendar day.
func BackdatedSubmissionTime(now time.Time) time.Time {
	y, m, d := now.AddDate(0, 0, -1).Date()
	return time.Date(y, m, d, 23, 59, 59, 999000000, now.Location())
}
