package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidDomain is returned when a string is not a plausible DNS name.
var ErrInvalidDomain = errors.New("invalid domain")

// pattern matches one or more labels followed by an alphabetic TLD.
var pattern = regexp.MustCompile(`^(?:[a-z0-9-]+\.)+[a-z]{2,}$`)

// Validate trims and lowercases raw and checks it against the domain grammar.
// No DNS lookup is performed.
func Validate(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if !pattern.MatchString(d) {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	return d, nil
}

// HasSuffix reports whether host belongs to domain. With strict set, the
// character preceding the suffix must be a dot unless host equals domain.
func HasSuffix(host, domain string, strict bool) bool {
	if !strings.HasSuffix(host, domain) {
		return false
	}
	if !strict || len(host) == len(domain) {
		return true
	}
	return host[len(host)-len(domain)-1] == '.'
}
