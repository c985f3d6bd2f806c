package user

import "strings"

// User is the caller of an API request, identified by email.
type User struct {
	Email   string
	IsAdmin bool
}

// Admins is the set of administrator emails, compared case-insensitively.
type Admins map[string]struct{}

func NewAdmins(emails []string) Admins {
	admins := make(Admins, len(emails))
	for _, e := range emails {
		if key := normalize(e); key != "" {
			admins[key] = struct{}{}
		}
	}
	return admins
}

func (a Admins) Contains(email string) bool {
	_, ok := a[normalize(email)]
	return ok
}

// Identify builds the User for an email, marking configured administrators.
func (a Admins) Identify(email string) User {
	return User{Email: strings.TrimSpace(email), IsAdmin: a.Contains(email)}
}

// Is reports whether the user is the mailbox owner of email.
func (u User) Is(email string) bool {
	return normalize(u.Email) != "" && normalize(u.Email) == normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
