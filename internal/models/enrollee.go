package models

const (
	EnrolleeStatusActive = "active"

	NotificationsEnabled  = "enabled"
	NotificationsDisabled = "disabled"
)

type Enrollee struct {
	CourseID         string  `db:"course_id" json:"course_id"`
	UID              string  `db:"uid" json:"uid"`
	Lastname         string  `db:"lastname" json:"lastname"`
	Firstname        string  `db:"firstname" json:"firstname"`
	Email            *string `db:"email" json:"email,omitempty"`
	Status           string  `db:"status" json:"status"`
	Notifications    string  `db:"notifications" json:"notifications"`
	GithubAccount    *string `db:"github_account" json:"github_account,omitempty"`
	GithubRepository *string `db:"github_repository" json:"github_repository,omitempty"`
}

func (e *Enrollee) HasGithubAccount() bool {
	return e.GithubAccount != nil && *e.GithubAccount != "" &&
		e.GithubRepository != nil && *e.GithubRepository != ""
}
