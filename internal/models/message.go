package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// MessageTemplate is a named notification template stored in the database.
// Subject and body are text/template sources rendered with a per-message
// data record.
type MessageTemplate struct {
	TemplateID string `db:"template_id" json:"template_id"`
	MimeType   string `db:"mimetype" json:"mimetype"`
	Priority   string `db:"priority" json:"priority"`
	Subject    string `db:"subject" json:"subject"`
	Body       string `db:"body" json:"body"`
}

// Recipient is the enrollee+course projection the notifier needs to decide
// whether and where a message can be sent.
type Recipient struct {
	CourseID      string  `db:"course_id"`
	CourseCode    string  `db:"course_code"`
	UID           string  `db:"uid"`
	SentFrom      string  `db:"sent_from"`
	SentTo        *string `db:"sent_to"`
	Notifications string  `db:"notifications"`
}

// Message is one queued notification. Delivery itself is the mail relay's
// job; this bot only ever inserts rows.
type Message struct {
	MessageID int64     `db:"message_id" json:"message_id"`
	CourseID  string    `db:"course_id" json:"course_id" validate:"required"`
	UID       string    `db:"uid" json:"uid" validate:"required"`
	MimeType  string    `db:"mimetype" json:"mimetype"`
	Priority  string    `db:"priority" json:"priority"`
	SentFrom  string    `db:"sent_from" json:"sent_from" validate:"required"`
	SentTo    string    `db:"sent_to" json:"sent_to" validate:"required"`
	Subject   string    `db:"subject" json:"subject"`
	Body      string    `db:"body" json:"body"`
	Created   time.Time `db:"created" json:"created"`
}

func (m *Message) Validate() error {
	validate := validator.New()
	return validate.Struct(m)
}
