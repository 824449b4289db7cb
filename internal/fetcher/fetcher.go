// Package fetcher runs one isolated retrieval attempt for one
// (course, assignment, enrollee) triple: existence check, trigger match,
// clone, submission registration, notification. The dispatcher normally runs
// it as a subprocess, but Run is a plain function and works in-process too.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/lussekatt/internal/directive"
	"github.com/shrimpsizemoose/lussekatt/internal/github"
	"github.com/shrimpsizemoose/lussekatt/internal/metrics"
	"github.com/shrimpsizemoose/lussekatt/internal/models"
	"github.com/shrimpsizemoose/lussekatt/internal/notify"
	"github.com/shrimpsizemoose/lussekatt/internal/store"
)

const (
	templateSuccess = "HUBBOT_SUCCESS"
	templateFailure = "HUBBOT_FAIL"

	acceptedLink = "accepted"
)

// Outcome is a worker's terminal result, mapped one-to-one onto process exit
// codes so the dispatcher can tally runs without parsing output.
type Outcome int

const (
	Success Outcome = iota
	NotTriggered
	RepositoryNotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotTriggered:
		return "not_triggered"
	case RepositoryNotFound:
		return "repository_not_found"
	default:
		return "error"
	}
}

// ExitCode maps outcomes to process exit codes: 0 for success, 1 for the
// benign "nothing to fetch" conditions, negative for real failures.
func (o Outcome) ExitCode() int {
	switch o {
	case Success:
		return 0
	case NotTriggered, RepositoryNotFound:
		return 1
	default:
		return -1
	}
}

// CredentialSource yields the bot account and API token for a course.
type CredentialSource interface {
	CourseCredentials(ctx context.Context, courseID string) (account, token string, err error)
}

type Worker struct {
	store          store.Store
	notifier       *notify.Notifier
	creds          CredentialSource
	cloner         Cloner
	submissionsDir string
	dateFormat     string
	githubOpts     []github.Option
	now            func() time.Time
}

type Option func(*Worker)

// WithGithubOptions forwards options to the per-run repository client,
// e.g. an alternative API endpoint in tests.
func WithGithubOptions(opts ...github.Option) Option {
	return func(w *Worker) { w.githubOpts = opts }
}

func WithCloner(c Cloner) Option {
	return func(w *Worker) { w.cloner = c }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithDateFormat(format string) Option {
	return func(w *Worker) { w.dateFormat = format }
}

func New(s store.Store, notifier *notify.Notifier, creds CredentialSource, submissionsDir string, opts ...Option) *Worker {
	w := &Worker{
		store:          s,
		notifier:       notifier,
		creds:          creds,
		cloner:         GitCloner{Binary: "git"},
		submissionsDir: submissionsDir,
		dateFormat:     "2006-01-02",
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run executes the full attempt for one triple. The returned error explains
// a Failed outcome; benign outcomes carry no error. Notification failures
// never change the outcome.
func (w *Worker) Run(ctx context.Context, courseID, assignmentID, uid string) (Outcome, error) {
	start := w.now()
	outcome, err := w.run(ctx, courseID, assignmentID, uid)

	metrics.FetchesTotal.WithLabelValues(courseID, assignmentID, outcome.String()).Inc()
	metrics.FetchDuration.WithLabelValues(courseID, assignmentID).Observe(time.Since(start).Seconds())

	return outcome, err
}

func (w *Worker) run(ctx context.Context, courseID, assignmentID, uid string) (Outcome, error) {
	assignment, err := w.store.GetAssignment(courseID, assignmentID)
	if err != nil {
		return Failed, err
	}

	var raw []byte
	if assignment.Directives != nil {
		raw = []byte(*assignment.Directives)
	}
	rules, err := directive.Parse(raw)
	if err != nil {
		return Failed, fmt.Errorf("assignment (%s, %s): %w", courseID, assignmentID, err)
	}

	enrollee, err := w.store.GetEnrollee(courseID, uid)
	if err != nil {
		return Failed, err
	}
	if !enrollee.HasGithubAccount() {
		return Failed, fmt.Errorf("enrollee (%s, %s) has no github account registered", courseID, uid)
	}
	account := *enrollee.GithubAccount
	repository := *enrollee.GithubRepository

	botAccount, token, err := w.creds.CourseCredentials(ctx, courseID)
	if err != nil {
		return Failed, fmt.Errorf("course %s: %w", courseID, err)
	}
	repo := github.New(botAccount, token, w.githubOpts...)

	exists, err := repo.Exists(ctx, account, repository)
	if err != nil {
		return Failed, err
	}
	if !exists {
		explain := fmt.Sprintf(
			"Repository 'git@github.com:%s/%s.git' registered to enrollee '%s' was not found",
			account, repository, uid,
		)
		logger.Info.Printf("(%s, %s, %s) %s", courseID, assignmentID, uid, explain)
		w.notifyFailure(rules, assignment, uid, explain)
		return RepositoryNotFound, nil
	}
	logger.Debug.Printf(
		"(%s, %s, %s) repository 'git@github.com:%s/%s.git' exists",
		courseID, assignmentID, uid, account, repository,
	)

	entries, err := repo.Contents(ctx, account, repository)
	if err != nil {
		return Failed, err
	}
	matches := rules.Fetch.Trigger.Match(entries)
	if len(matches) == 0 {
		explain := fmt.Sprintf(
			"Repository '%s/%s' contains no entry matching trigger pattern '%s' (type %s)",
			account, repository, rules.Fetch.Trigger.Pattern, rules.Fetch.Trigger.Type,
		)
		logger.Info.Printf("(%s, %s, %s) %s", courseID, assignmentID, uid, explain)
		w.notifyFailure(rules, assignment, uid, explain)
		return NotTriggered, nil
	}

	targetRoot := filepath.Join(w.submissionsDir, courseID, uid, assignmentID)
	datedDir := filepath.Join(targetRoot, w.now().Format(w.dateFormat))

	// Same-day re-run: retrieval is idempotent per calendar day, the old
	// clone is replaced rather than accumulated.
	if _, err := os.Stat(datedDir); err == nil {
		logger.Info.Printf(
			"(%s, %s, %s) target clone directory '%s' already exists, removing",
			courseID, assignmentID, uid, datedDir,
		)
		if err := os.RemoveAll(datedDir); err != nil {
			return Failed, fmt.Errorf("failed to prepare target directory: %w", err)
		}
	}
	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return Failed, fmt.Errorf("failed to create target directory: %w", err)
	}

	cloneURL := repo.CloneURL(account, repository)
	if err := w.cloner.Clone(ctx, cloneURL, datedDir); err != nil {
		explain := redact(err.Error(), token)
		logger.Error.Printf("(%s, %s, %s) clone failed: %s", courseID, assignmentID, uid, explain)
		w.notifyFailure(rules, assignment, uid, "Repository clone failed: "+explain)
		return Failed, errors.New(explain)
	}

	submitted := models.BackdatedSubmissionTime(w.now())
	sub := &models.Submission{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		UID:          uid,
		Content:      datedDir,
		Submitted:    submitted,
		State:        models.SubmissionDraft,
	}
	if _, err := w.store.CreateSubmission(sub); err != nil {
		// The clone stays on disk; the next day's run replaces it.
		return Failed, fmt.Errorf("failed to register submission: %w", err)
	}
	logger.Debug.Printf(
		"(%s, %s, %s) submission #%d registered as draft, dated %s",
		courseID, assignmentID, uid, sub.SubmissionID, submitted.Format("2006-01-02 15:04:05"),
	)

	w.placeAcceptedLink(courseID, assignmentID, uid, targetRoot, datedDir, matches)

	if rules.Fetch.NotifyOnSuccess {
		data := map[string]any{
			"assignment_name": assignment.Name,
			"fetched":         datedDir,
		}
		if _, err := w.notifier.Enqueue(templateSuccess, courseID, uid, data); err != nil {
			if errors.Is(err, notify.ErrNotSent) {
				logger.Info.Printf("(%s, %s, %s) success notification skipped: %v", courseID, assignmentID, uid, err)
			} else {
				logger.Error.Printf("(%s, %s, %s) failed to queue success notification: %v", courseID, assignmentID, uid, err)
			}
		}
	}

	return Success, nil
}

// placeAcceptedLink points the stable 'accepted' marker at the matched entry
// inside today's clone. An ambiguous multi-match is flagged and the marker
// withheld: the clone is kept, a human picks the intended submission.
func (w *Worker) placeAcceptedLink(courseID, assignmentID, uid, targetRoot, datedDir string, matches []models.RepoEntry) {
	linkPath := filepath.Join(targetRoot, acceptedLink)

	if len(matches) > 1 {
		paths := make([]string, len(matches))
		for i, m := range matches {
			paths[i] = m.Path
		}
		logger.Error.Printf(
			"(%s, %s, %s) %d entries match the trigger (%s), accepted marker withheld",
			courseID, assignmentID, uid, len(matches), strings.Join(paths, ", "),
		)
		return
	}

	if err := os.Remove(linkPath); err != nil && !os.IsNotExist(err) {
		logger.Error.Printf("(%s, %s, %s) failed to remove stale accepted marker: %v", courseID, assignmentID, uid, err)
		return
	}
	target := filepath.Join(datedDir, matches[0].Path)
	if err := os.Symlink(target, linkPath); err != nil {
		logger.Error.Printf("(%s, %s, %s) failed to create accepted marker: %v", courseID, assignmentID, uid, err)
	}
}

// notifyFailure queues the failure template, best-effort. Its own failure is
// logged and swallowed: notification is a side effect, not part of the
// worker's contract with the dispatcher.
func (w *Worker) notifyFailure(rules directive.Directive, assignment *models.Assignment, uid, explain string) {
	if !rules.Fetch.NotifyOnFailure {
		return
	}
	data := map[string]any{
		"assignment_name": assignment.Name,
		"explain":         explain,
	}
	if _, err := w.notifier.Enqueue(templateFailure, assignment.CourseID, uid, data); err != nil {
		if errors.Is(err, notify.ErrNotSent) {
			logger.Info.Printf(
				"(%s, %s, %s) failure notification skipped: %v",
				assignment.CourseID, assignment.AssignmentID, uid, err,
			)
		} else {
			logger.Error.Printf(
				"(%s, %s, %s) failed to queue failure notification: %v",
				assignment.CourseID, assignment.AssignmentID, uid, err,
			)
		}
	}
}

func redact(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "****")
}
