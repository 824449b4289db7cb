// Package dispatch runs the unattended retrieval cycle: one lock, one pass
// over every open git-retrieval assignment, one worker per eligible
// (assignment, enrollee) pair, one summary line.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/lussekatt/internal/eligibility"
	"github.com/shrimpsizemoose/lussekatt/internal/fetcher"
	"github.com/shrimpsizemoose/lussekatt/internal/lockfile"
	"github.com/shrimpsizemoose/lussekatt/internal/metrics"
	"github.com/shrimpsizemoose/lussekatt/internal/store"
	"github.com/shrimpsizemoose/lussekatt/internal/window"
)

// WorkerRunner executes one fetch attempt and returns its outcome plus any
// captured output. The default implementation re-invokes this binary with
// --clone so every attempt is isolated in its own process; an in-process
// runner satisfies the same contract for pooled setups and tests.
type WorkerRunner func(ctx context.Context, courseID, assignmentID, uid string) (fetcher.Outcome, string, error)

type Summary struct {
	Assignments  int
	Attempted    int
	Success      int
	NotTriggered int
	Failed       int
	Skipped      int
	Elapsed      time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"%d/%d fetched (%d not triggered, %d failed, %d skipped) over %d assignments in %s",
		s.Success, s.Attempted, s.NotTriggered, s.Failed, s.Skipped, s.Assignments, s.Elapsed.Round(time.Millisecond),
	)
}

type Dispatcher struct {
	store    store.Store
	runner   WorkerRunner
	lockPath string
	now      func() time.Time
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(s store.Store, runner WorkerRunner, lockPath string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:    s,
		runner:   runner,
		lockPath: lockPath,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes one full dispatch cycle. When another instance holds the
// lock it returns lockfile.ErrAlreadyRunning without touching any work;
// that is routine when a previous run overruns, not an incident.
func (d *Dispatcher) Run(ctx context.Context) (*Summary, error) {
	lock, err := lockfile.Acquire(d.lockPath)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	start := d.now()
	summary := &Summary{}

	assignments, err := d.store.ListRetrievalAssignments(start)
	if err != nil {
		return nil, err
	}
	logger.Debug.Printf("Processing %d retrieval assignments", len(assignments))

	for i := range assignments {
		assignment := &assignments[i]

		last, badRate := window.LastRetrievalDate(assignment.Deadline, assignment.LatePenalty, assignment.CourseCloses)
		if badRate {
			logger.Info.Printf(
				"Assignment (%s, %s) has a malformed latepenalty, treating as single-day window",
				assignment.CourseID, assignment.AssignmentID,
			)
		}
		if !window.OpenForRetrieval(start, last) {
			logger.Debug.Printf(
				"Assignment (%s, %s) retrieval window closed on %s, skipping",
				assignment.CourseID, assignment.AssignmentID, last.Format("2006-01-02"),
			)
			continue
		}
		summary.Assignments++
		if last != nil {
			logger.Debug.Printf(
				"Assignment (%s, %s) %q open until %s",
				assignment.CourseID, assignment.AssignmentID, assignment.Name, last.Format("2006-01-02"),
			)
		} else {
			logger.Debug.Printf(
				"Assignment (%s, %s) %q open indefinitely",
				assignment.CourseID, assignment.AssignmentID, assignment.Name,
			)
		}

		enrollees, err := d.store.ListActiveEnrollees(assignment.CourseID)
		if err != nil {
			logger.Error.Printf("Failed to list enrollees for course %s: %v", assignment.CourseID, err)
			summary.Failed++
			continue
		}
		logger.Debug.Printf("Course %s has %d active enrollees", assignment.CourseID, len(enrollees))

		for j := range enrollees {
			enrollee := &enrollees[j]

			history, err := d.store.ListSubmissions(assignment.CourseID, assignment.AssignmentID, enrollee.UID)
			if err != nil {
				logger.Error.Printf(
					"(%s, %s, %s) failed to load submission history: %v",
					assignment.CourseID, assignment.AssignmentID, enrollee.UID, err,
				)
				summary.Failed++
				continue
			}

			decision := eligibility.Evaluate(assignment, enrollee, history)
			if !decision.Eligible() {
				detail := decision.Reason.String()
				if decision.Detail != "" {
					detail = fmt.Sprintf("%s (%s)", detail, decision.Detail)
				}
				logger.Debug.Printf(
					"(%s, %s, %s) skipping fetch: %s",
					assignment.CourseID, assignment.AssignmentID, enrollee.UID, detail,
				)
				metrics.SkippedTotal.WithLabelValues(
					assignment.CourseID, assignment.AssignmentID, decision.Reason.String(),
				).Inc()
				summary.Skipped++
				continue
			}

			summary.Attempted++
			outcome, output, err := d.runner(ctx, assignment.CourseID, assignment.AssignmentID, enrollee.UID)
			switch {
			case err != nil || outcome == fetcher.Failed:
				summary.Failed++
				logger.Error.Printf(
					"(%s, %s, %s) fetch attempt failed: %v: %s",
					assignment.CourseID, assignment.AssignmentID, enrollee.UID, err, output,
				)
			case outcome == fetcher.Success:
				summary.Success++
			default:
				summary.NotTriggered++
			}
		}
	}

	summary.Elapsed = time.Since(start)
	metrics.DispatchDuration.Observe(summary.Elapsed.Seconds())
	logger.Info.Printf("%s", summary)

	return summary, nil
}
