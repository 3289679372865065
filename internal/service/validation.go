package service

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/Marga-Ghale/together-culture-crm/internal/types"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// fieldErrors collects per-field messages and reports them as one
// validation error.
type fieldErrors map[string]string

func (f fieldErrors) add(field, message string) {
	if _, ok := f[field]; !ok {
		f[field] = message
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return validationError(f)
}

func checkUsername(f fieldErrors, username string) {
	switch {
	case len(username) < 3:
		f.add("username", "Username must be at least 3 characters long.")
	case !usernamePattern.MatchString(username):
		f.add("username", "Username can only contain letters, numbers and underscores.")
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func checkEmail(f fieldErrors, address string) {
	if address == "" {
		f.add("email", "Email is required.")
		return
	}
	if a, err := mail.ParseAddress(address); err != nil || a.Address != address {
		f.add("email", "Enter a valid email address.")
	}
}

func checkPassword(f fieldErrors, field, password string) {
	if len(password) < 8 {
		f.add(field, "Password must be at least 8 characters long.")
		return
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		f.add(field, "Password must contain an uppercase letter, a lowercase letter and a number.")
	}
}

func checkFullName(f fieldErrors, name string) {
	if len(strings.TrimSpace(name)) < 3 {
		f.add("full_name", "Full name must be at least 3 characters long.")
	}
}

// normalizePhone strips common separators before the digit check.
func normalizePhone(s string) string {
	return phoneSeparators.Replace(strings.TrimSpace(s))
}

func checkPhone(f fieldErrors, phone string) {
	if !phonePattern.MatchString(phone) {
		f.add("phone_number", "Phone number must be 10 to 15 digits, optionally starting with +.")
	}
}

func checkLocation(f fieldErrors, location string) {
	if len(strings.TrimSpace(location)) < 3 {
		f.add("location", "Location must be at least 3 characters long.")
	}
}

func checkBio(f fieldErrors, bio string) {
	if len([]rune(bio)) > 500 {
		f.add("bio", "Bio cannot be longer than 500 characters.")
	}
}

// parseInterests normalises and de-duplicates interest names. required
// demands at least one.
func parseInterests(f fieldErrors, field string, raw []string, required bool) []types.InterestType {
	if required && len(raw) == 0 {
		f.add(field, "Select at least one interest.")
		return nil
	}
	seen := map[types.InterestType]bool{}
	out := make([]types.InterestType, 0, len(raw))
	for _, r := range raw {
		it := types.InterestType(strings.ToLower(strings.TrimSpace(r)))
		if !types.IsValidInterestType(string(it)) {
			f.add(field, "Unknown interest: "+r)
			continue
		}
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
