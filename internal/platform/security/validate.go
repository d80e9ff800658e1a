package security

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{0,15}$|^\(?\d{3}\)?[\s-]?\d{3}[\s-]?\d{4}$`)

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// ValidateEmail reports whether s has the shape of an email address.
func (h *Helper) ValidateEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// ValidatePhone reports whether s looks like a phone number once spaces,
// dashes and parentheses are removed.
func (h *Helper) ValidatePhone(s string) bool {
	return phonePattern.MatchString(phoneSeparators.Replace(s))
}
