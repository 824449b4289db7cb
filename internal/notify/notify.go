// Package notify renders a named template against a data record and queues
// the result for the mail relay. Queuing is the whole contract: delivery is
// somebody else's cron job.
package notify

import (
	"bytes"
	"errors"
	"fmt"
	"text/template"
	"time"

	"github.com/shrimpsizemoose/lussekatt/internal/models"
	"github.com/shrimpsizemoose/lussekatt/internal/store"
)

// ErrNotSent is the expected, non-fatal outcome for recipients that cannot
// receive mail: notifications opted out, or no address on file.
var ErrNotSent = errors.New("notification not sent")

type Notifier struct {
	store store.Store
}

func New(s store.Store) *Notifier {
	return &Notifier{store: s}
}

// Enqueue renders the template's subject and body with data and inserts one
// message row, returning its id. The recipient is always an enrollee of the
// course; the sender is the course address, namified with the course code.
func (n *Notifier) Enqueue(templateID, courseID, uid string, data map[string]any) (int64, error) {
	recipient, err := n.store.GetRecipient(courseID, uid)
	if err != nil {
		return 0, err
	}

	if recipient.Notifications == models.NotificationsDisabled {
		return 0, fmt.Errorf("enrollee (%s, %s) has notifications off: %w", courseID, uid, ErrNotSent)
	}
	if recipient.SentTo == nil || *recipient.SentTo == "" {
		return 0, fmt.Errorf("enrollee (%s, %s) has no email address: %w", courseID, uid, ErrNotSent)
	}

	tpl, err := n.store.GetTemplate(templateID)
	if err != nil {
		return 0, err
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["course_code"]; !ok {
		data["course_code"] = recipient.CourseCode
	}

	subject, err := render(templateID+":subject", tpl.Subject, data)
	if err != nil {
		return 0, err
	}
	body, err := render(templateID+":body", tpl.Body, data)
	if err != nil {
		return 0, err
	}

	sentFrom := recipient.SentFrom
	if recipient.CourseCode != "" {
		sentFrom = fmt.Sprintf("%s <%s>", recipient.CourseCode, recipient.SentFrom)
	}

	msg := &models.Message{
		CourseID: courseID,
		UID:      uid,
		MimeType: tpl.MimeType,
		Priority: tpl.Priority,
		SentFrom: sentFrom,
		SentTo:   *recipient.SentTo,
		Subject:  subject,
		Body:     body,
		Created:  time.Now().UTC(),
	}

	return n.store.CreateMessage(msg)
}

func render(name, source string, data map[string]any) (string, error) {
	tpl, err := template.New(name).Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
