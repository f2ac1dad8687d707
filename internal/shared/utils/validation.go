package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Size limits (in bytes)
const (
	MaxFrameSize   = 32 << 20  // largest plugin frame, record data included
	MaxMessageSize = 64 * 1024 // session message or update payload
	MaxIDLength    = 128
)

// SafeIDPattern allows alphanumeric, hyphens, underscores
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// DefaultFrameValidator returns a validator sized for plugin frames
func DefaultFrameValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxFrameSize)
}

// MaxSize returns the configured limit
func (v *JSONSizeValidator) MaxSize() int {
	return v.maxSize
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if size := len(data); size > v.maxSize {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", size, v.maxSize)
	}
	return nil
}

// ValidateJSON validates both size and JSON structure
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	// Size first, it is cheaper than a parse
	if err := v.ValidateSize(data); err != nil {
		return err
	}
	if !sonic.Valid(data) {
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

// ValidateString validates string length and UTF-8 encoding
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}

	if !utf8.ValidString(value) {
		return fmt.Errorf("%s contains invalid UTF-8", fieldName)
	}

	length := len(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d bytes", fieldName, minLen)
	}
	if maxLen > 0 && length > maxLen {
		return fmt.Errorf("%s exceeds maximum length of %d bytes", fieldName, maxLen)
	}
	return nil
}

// ValidateID validates an identifier such as an instance id
func ValidateID(id, fieldName string, required bool) error {
	id = strings.TrimSpace(id)
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}
	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}
	return nil
}
