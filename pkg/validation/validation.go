// Package validation guards the inputs that come from outside the
// simulation: datagrams from peers and driver names from the command line.
package validation

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxPlayerNameLen bounds driver names
const MaxPlayerNameLen = 32

var (
	// ErrRateLimited is returned when a source sends faster than allowed
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrTooLarge is returned for payloads above the size limit
	ErrTooLarge = errors.New("payload too large")
)

// Allow alphanumeric, spaces, hyphens, underscores, and basic punctuation
var validPlayerNameChars = regexp.MustCompile(`^[a-zA-Z0-9\s\-_.()]+$`)

// DatagramValidator checks size and per-source rate of incoming datagrams
// before they are decoded.
type DatagramValidator struct {
	maxSize     int
	rateLimiter *RateLimiter
}

// NewDatagramValidator accepts datagrams up to maxSize bytes and at most
// perSecond datagrams a second from each source. perSecond <= 0 disables
// rate limiting.
func NewDatagramValidator(maxSize, perSecond int) *DatagramValidator {
	v := &DatagramValidator{maxSize: maxSize}
	if perSecond > 0 {
		v.rateLimiter = NewRateLimiter(perSecond, time.Second)
	}
	return v
}

// Close releases resources used by the validator
func (v *DatagramValidator) Close() {
	if v.rateLimiter != nil {
		v.rateLimiter.Close()
	}
}

// Validate checks one datagram from source
func (v *DatagramValidator) Validate(data []byte, source string) error {
	if v.maxSize > 0 && len(data) > v.maxSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(data), v.maxSize)
	}
	if v.rateLimiter != nil && !v.rateLimiter.Allow(source) {
		return fmt.Errorf("%w: %s", ErrRateLimited, source)
	}
	return nil
}

// ValidatePlayerName validates and sanitizes a driver name
func ValidatePlayerName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("player name cannot be empty")
	}

	if len(name) > MaxPlayerNameLen {
		return "", fmt.Errorf("player name too long: %d characters (max %d)", len(name), MaxPlayerNameLen)
	}

	if !utf8.ValidString(name) {
		return "", fmt.Errorf("player name contains invalid UTF-8 characters")
	}

	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("player name cannot be only whitespace")
	}

	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("player name contains control characters")
		}
	}

	if !validPlayerNameChars.MatchString(trimmed) {
		return "", fmt.Errorf("player name contains invalid characters")
	}

	return html.EscapeString(trimmed), nil
}
