package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/spa-auth/internal/common"
)

const (
	maxNameLength     = 255
	maxEmailLength    = 255
	minPasswordLength = 8
	maxTitleLength    = 255
)

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts a bare address; display names are rejected.
func validEmail(email string) bool {
	if email == "" || utf8.RuneCountInString(email) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && strings.Contains(email, ".")
}

func checkEmail(v common.ValidationErrors, email string) {
	switch {
	case email == "":
		v.Add("email", "is required")
	case !validEmail(email):
		v.Add("email", "must be a valid email address")
	}
}

func checkPassword(v common.ValidationErrors, password, confirmation string) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		v.Add("password", "must be at least 8 characters")
	}
	if password != confirmation {
		v.Add("password", "confirmation does not match")
	}
}

func checkName(v common.ValidationErrors, name string) {
	switch {
	case strings.TrimSpace(name) == "":
		v.Add("name", "is required")
	case utf8.RuneCountInString(name) > maxNameLength:
		v.Add("name", "must not exceed 255 characters")
	}
}
