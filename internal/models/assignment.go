package models

import "time"

// Handler kinds. Only HandlerGitRetrieval assignments are ever considered by
// the fetch dispatcher. A course carries at most one HandlerGitAccount
// assignment (the registration form that collects the student's account name).
const (
	HandlerGitRetrieval = "HUBBOT"
	HandlerGitAccount   = "GITHUB_ACCOUNT"
)

type Assignment struct {
	CourseID     string     `db:"course_id" json:"course_id" validate:"required"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id" validate:"required"`
	Name         string     `db:"name" json:"name"`
	Handler      string     `db:"handler" json:"handler"`
	Directives   *string    `db:"directives" json:"directives,omitempty"`
	Opens        *time.Time `db:"opens" json:"opens,omitempty"`
	Deadline     *time.Time `db:"deadline" json:"deadline,omitempty"`
	LatePenalty  *float64   `db:"latepenalty" json:"latepenalty,omitempty"`
	// Retries is the number of re-fetches allowed on top of the first
	// submission. nil means unlimited.
	Retries *int `db:"retries" json:"retries,omitempty"`

	// CourseCloses comes from the course join and bounds assignments that
	// have no deadline of their own. nil means open indefinitely.
	CourseCloses *time.Time `db:"course_closes" json:"course_closes,omitempty"`
}
