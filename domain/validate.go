package domain

import (
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest password accepted at registration and login.
const MinPasswordLength = 6

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// NormalizeEmail trims and lower-cases an address so lookups are stable.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks the minimal preconditions for login and registration.
func ValidateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return NewError(ErrCodeInvalid, "email and password are required")
	}
	if !ValidEmail(email) {
		return NewError(ErrCodeInvalid, "invalid email address")
	}
	if len(password) < MinPasswordLength {
		return NewError(ErrCodeInvalid, "password must be at least 6 characters")
	}
	return nil
}

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// ValidPriority reports whether p is one of the known priorities.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ValidateTask checks a task before it is written.
func ValidateTask(t *Task) error {
	if t == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(t.Title) == "" {
		return NewError(ErrCodeInvalid, "task title is required")
	}
	if t.Priority != "" && !ValidPriority(t.Priority) {
		return NewError(ErrCodeInvalid, "priority must be one of low, medium, high")
	}
	if t.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}
