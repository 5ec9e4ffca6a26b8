package models

import "regexp"

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// InvalidEmails returns the entries of emails that fail IsValidEmail, in order.
func InvalidEmails(emails []string) []string {
	var invalid []string
	for _, e := range emails {
		if !IsValidEmail(e) {
			invalid = append(invalid, e)
		}
	}
	return invalid
}

type Email struct {
	From    string
	To      []string
	Subject string
	HTML    string
}
