package handlers

import (
	"net/mail"
	"regexp"
	"unicode"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,15}$`)

const (
	minGrade = 1
	maxGrade = 12
)

func validUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func validEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

// validPassword enforces at least 8 characters with one lowercase, one
// uppercase, one digit, and one symbol.
func validPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// validGrades reports whether grades is non-empty with every level in [1,12].
func validGrades(grades []int64) bool {
	if len(grades) == 0 {
		return false
	}
	for _, grade := range grades {
		if grade < minGrade || grade > maxGrade {
			return false
		}
	}
	return true
}
