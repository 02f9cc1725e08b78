package service

import (
	"regexp"
	"unicode/utf8"
)

// maxPasswordBytes is the longest input bcrypt accepts
const maxPasswordBytes = 72

// PasswordPolicy reports whether a password is strong enough to be accepted
type PasswordPolicy func(password string) bool

// passwordClasses are the character classes a strong password must contain:
// lowercase, uppercase, digit and a special character
var passwordClasses = []*regexp.Regexp{
	regexp.MustCompile(`[a-z]`),
	regexp.MustCompile(`[A-Z]`),
	regexp.MustCompile(`[0-9]`),
	regexp.MustCompile(`[^a-zA-Z0-9\s]`),
}

// StrengthPolicy returns a policy requiring at least minLength characters
// and one character from every class in passwordClasses
func StrengthPolicy(minLength int) PasswordPolicy {
	return func(password string) bool {
		if utf8.RuneCountInString(password) < minLength || len(password) > maxPasswordBytes {
			return false
		}
		for _, class := range passwordClasses {
			if !class.MatchString(password) {
				return false
			}
		}
		return true
	}
}
