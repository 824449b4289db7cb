package eligibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func activeEnrollee() *models.Enrollee {
	return &models.Enrollee{
		CourseID:         "DTEK0068",
		UID:              "jasata",
		Status:           models.EnrolleeStatusActive,
		GithubAccount:    strPtr("kaislahattu"),
		GithubRepository: strPtr("DTEK0068"),
	}
}

func TestEvaluate(t *testing.T) {
	assignment := &models.Assignment{
		CourseID:     "DTEK0068",
		AssignmentID: "E01",
		Handler:      models.HandlerGitRetrieval,
	}

	t.Run("clean enrollee is eligible", func(t *testing.T) {
		d := Evaluate(assignment, activeEnrollee(), nil)
		assert.True(t, d.Eligible())
	})

	t.Run("inactive enrollee is skipped first", func(t *testing.T) {
		e := activeEnrollee()
		e.Status = "concluded"
		// Even with a pending draft, inactivity wins the priority order.
		history := []models.Submission{{SubmissionID: 7, State: models.SubmissionDraft}}
		d := Evaluate(assignment, e, history)
		assert.Equal(t, SkipInactive, d.Reason)
	})

	t.Run("missing github account", func(t *testing.T) {
		e := activeEnrollee()
		e.GithubAccount = nil
		d := Evaluate(assignment, e, nil)
		assert.Equal(t, SkipNoAccount, d.Reason)
	})

	t.Run("empty github repository counts as missing", func(t *testing.T) {
		e := activeEnrollee()
		e.GithubRepository = strPtr("")
		d := Evaluate(assignment, e, nil)
		assert.Equal(t, SkipNoAccount, d.Reason)
	})

	t.Run("pending draft blocks a second fetch", func(t *testing.T) {
		history := []models.Submission{{SubmissionID: 42, State: models.SubmissionDraft}}
		d := Evaluate(assignment, activeEnrollee(), history)
		assert.Equal(t, SkipDraftPending, d.Reason)
		assert.Contains(t, d.Detail, "#42")
	})

	t.Run("accepted with zero retries is done", func(t *testing.T) {
		a := *assignment
		a.Retries = intPtr(0)
		history := []models.Submission{{State: models.SubmissionAccepted}}
		d := Evaluate(&a, activeEnrollee(), history)
		assert.Equal(t, SkipRetriesExhausted, d.Reason)
	})

	t.Run("accepted with retries remaining allows a redo", func(t *testing.T) {
		a := *assignment
		a.Retries = intPtr(2)
		history := []models.Submission{{State: models.SubmissionAccepted}}
		d := Evaluate(&a, activeEnrollee(), history)
		assert.True(t, d.Eligible())
	})

	t.Run("accepted with unlimited retries allows a redo", func(t *testing.T) {
		history := []models.Submission{
			{State: models.SubmissionAccepted},
			{State: models.SubmissionRejected},
			{State: models.SubmissionRejected},
		}
		d := Evaluate(assignment, activeEnrollee(), history)
		assert.True(t, d.Eligible())
	})

	t.Run("rejected history alone never exhausts the budget", func(t *testing.T) {
		a := *assignment
		a.Retries = intPtr(1)
		history := []models.Submission{
			{State: models.SubmissionRejected},
			{State: models.SubmissionRejected},
		}
		d := Evaluate(&a, activeEnrollee(), history)
		assert.True(t, d.Eligible())
	})
}
