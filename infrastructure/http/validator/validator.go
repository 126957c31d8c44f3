package validator

import (
	"net/mail"
	"regexp"
	"strings"

	apperr "github.com/hiprotech/portal/domain/error"
)

// MinPasswordLength matches the registration form's rule.
const MinPasswordLength = 6

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

func ValidateEmail(email string) bool {
	if email == "" {
		return false
	}

	// net/mail accepts display names and comments; the regex rejects them
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}

	return emailRegex.MatchString(strings.ToLower(email))
}

func ValidatePassword(password string) bool {
	return len(password) >= MinPasswordLength
}

func ValidateRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

// Credentials checks a login form.
func Credentials(email, password string) error {
	if !ValidateRequired(email) {
		return apperr.ErrMissingField("email")
	}
	if !ValidateRequired(password) {
		return apperr.ErrMissingField("password")
	}
	if !ValidateEmail(email) {
		return apperr.ErrInvalidEmail(email)
	}
	return nil
}

// Registration checks a registration form, including the confirmation
// field when the form has one.
func Registration(email, password, confirm, firstName, lastName string) error {
	if err := Credentials(email, password); err != nil {
		return err
	}
	if !ValidateRequired(firstName) {
		return apperr.ErrMissingField("firstName")
	}
	if !ValidateRequired(lastName) {
		return apperr.ErrMissingField("lastName")
	}
	if !ValidatePassword(password) {
		return apperr.ErrInvalidPassword("Password must be at least 6 characters")
	}
	if confirm != "" && confirm != password {
		return apperr.ErrInvalidPassword("Passwords do not match")
	}
	return nil
}
