// Package eligibility decides which enrollees get a fetch attempt. Skips are
// ordinary values, not errors: every excluded student has a reason the
// dispatcher can log at debug level.
package eligibility

import (
	"fmt"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
)

type SkipReason int

const (
	// Eligible means a fetch attempt should be made.
	Eligible SkipReason = iota
	// SkipInactive excludes enrollees whose status is not "active".
	SkipInactive
	// SkipNoAccount excludes enrollees without a registered remote account.
	SkipNoAccount
	// SkipDraftPending excludes enrollees whose previous fetch is still
	// waiting for evaluation.
	SkipDraftPending
	// SkipRetriesExhausted excludes enrollees who are done: an accepted
	// submission exists and the assignment's retry budget is spent.
	SkipRetriesExhausted
)

func (r SkipReason) String() string {
	switch r {
	case Eligible:
		return "eligible"
	case SkipInactive:
		return "enrollee not active"
	case SkipNoAccount:
		return "no remote account registered"
	case SkipDraftPending:
		return "draft submission pending evaluation"
	case SkipRetriesExhausted:
		return "retry limit exhausted"
	default:
		return fmt.Sprintf("unknown skip reason %d", int(r))
	}
}

type Decision struct {
	Reason SkipReason
	// Detail is extra context for the debug log, e.g. which draft blocks
	// the fetch.
	Detail string
}

func (d Decision) Eligible() bool {
	return d.Reason == Eligible
}

// Evaluate applies the exclusion rules in priority order, first match wins.
// An accepted submission alone does not exclude: with retries left the
// student may be re-fetched, e.g. when an instructor requests a redo.
func Evaluate(assignment *models.Assignment, enrollee *models.Enrollee, history []models.Submission) Decision {
	if enrollee.Status != models.EnrolleeStatusActive {
		return Decision{
			Reason: SkipInactive,
			Detail: fmt.Sprintf("status is %q", enrollee.Status),
		}
	}

	if !enrollee.HasGithubAccount() {
		return Decision{Reason: SkipNoAccount}
	}

	var accepted bool
	for _, sub := range history {
		switch sub.State {
		case models.SubmissionDraft:
			return Decision{
				Reason: SkipDraftPending,
				Detail: fmt.Sprintf("draft submission #%d", sub.SubmissionID),
			}
		case models.SubmissionAccepted:
			accepted = true
		}
	}

	if accepted && assignment.Retries != nil && len(history) > *assignment.Retries {
		return Decision{
			Reason: SkipRetriesExhausted,
			Detail: fmt.Sprintf("%d submissions, retry limit %d", len(history), *assignment.Retries),
		}
	}

	return Decision{Reason: Eligible}
}
