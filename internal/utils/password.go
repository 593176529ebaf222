package utils

import (
	"errors"
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest accepted credential.
const MinPasswordLength = 10

var (
	ErrPasswordTooShort    = errors.New("password must be at least 10 characters long")
	ErrPasswordNoUppercase = errors.New("password must contain an uppercase letter")
	ErrPasswordNoLowercase = errors.New("password must contain a lowercase letter")
	ErrPasswordNoDigit     = errors.New("password must contain a digit")
	ErrPasswordNoSymbol    = errors.New("password must contain a symbol")
	ErrPasswordWhitespace  = errors.New("password must not start or end with whitespace")
)

var passwordRules = []struct {
	err error
	has func(r rune) bool
}{
	{ErrPasswordNoUppercase, unicode.IsUpper},
	{ErrPasswordNoLowercase, unicode.IsLower},
	{ErrPasswordNoDigit, unicode.IsDigit},
	{ErrPasswordNoSymbol, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) }},
}

// CheckPassword returns the first strength rule password breaks, or nil.
func CheckPassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if strings.TrimSpace(password) != password {
		return ErrPasswordWhitespace
	}
	for _, rule := range passwordRules {
		if !strings.ContainsFunc(password, rule.has) {
			return rule.err
		}
	}
	return nil
}
