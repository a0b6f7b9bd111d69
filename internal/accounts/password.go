package accounts

import (
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength = 8
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

const msgPasswordTooLong = "This password is too long. It must contain at most 72 bytes."

// passwordCost is lowered by tests.
var passwordCost = bcrypt.DefaultCost

var commonPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"12345678":   {},
	"123456789":  {},
	"1234567890": {},
	"qwerty123":  {},
	"qwertyuiop": {},
	"iloveyou":   {},
	"11111111":   {},
	"letmein1":   {},
	"admin123":   {},
	"welcome1":   {},
	"abc12345":   {},
	"sunshine":   {},
	"football":   {},
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// PasswordProblems returns the reasons a password is too weak, or nil.
func PasswordProblems(password, username, email string) []string {
	var problems []string

	if len([]rune(password)) < MinPasswordLength {
		problems = append(problems, "This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > MaxPasswordBytes {
		problems = append(problems, msgPasswordTooLong)
	}
	if isNumeric(password) {
		problems = append(problems, "This password is entirely numeric.")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "This password is too common.")
	}
	if tooSimilar(password, username, email) {
		problems = append(problems, "The password is too similar to the username or email.")
	}
	return problems
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilar(password, username, email string) bool {
	lower := strings.ToLower(password)
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	for _, attr := range []string{strings.ToLower(username), local} {
		if len(attr) < 3 {
			continue
		}
		if strings.Contains(lower, attr) || strings.Contains(attr, lower) {
			return true
		}
	}
	return false
}
