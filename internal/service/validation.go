package service

import (
	"regexp"
	"strings"
)

const (
	maxEmailLen    = 254
	maxNameLen     = 100
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(email string) bool {
	return len(email) <= maxEmailLen && emailPattern.MatchString(email)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func anyBlank(values ...string) bool {
	for _, v := range values {
		if isBlank(v) {
			return true
		}
	}
	return false
}
