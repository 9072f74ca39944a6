package utils

import (
	"fmt"
	"strings"
)

// Request limits
const (
	MaxJSONSize        = 1 * 1024 * 1024 // maximum request body
	MaxCommandSize     = 64 * 1024       // maximum command line
	MaxSessionIDLength = 128
	MaxParamsDepth     = 8 // nesting allowed in tool parameters
)

// ValidateSessionID checks a caller-supplied session ID. IDs appear in URLs
// and log lines, so they are limited to a plain character set.
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("session_id is required")
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("session_id length %d exceeds maximum %d", len(id), MaxSessionIDLength)
	}
	for _, r := range id {
		if !isIDRune(r) {
			return fmt.Errorf("session_id contains invalid character %q", r)
		}
	}
	return nil
}

func isIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == ':':
		return true
	}
	return false
}

// ValidateCommand checks a command line before it is written to a shell.
func ValidateCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command is required")
	}
	if len(command) > MaxCommandSize {
		return fmt.Errorf("command size %d bytes exceeds maximum %d bytes", len(command), MaxCommandSize)
	}
	if strings.ContainsRune(command, 0) {
		return fmt.Errorf("command contains a NUL byte")
	}
	return nil
}

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// DefaultJSONValidator returns a validator with the default limit
func DefaultJSONValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxJSONSize)
}

// ValidateSize checks if the data size is within limits
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if len(data) > v.maxSize {
		return fmt.Errorf("JSON size %d bytes exceeds maximum %d bytes", len(data), v.maxSize)
	}
	return nil
}

// ValidateJSONDepth checks if nesting depth is within limits
func ValidateJSONDepth(data interface{}, maxDepth int) error {
	return checkDepth(data, 0, maxDepth)
}

func checkDepth(data interface{}, currentDepth int, maxDepth int) error {
	if currentDepth > maxDepth {
		return fmt.Errorf("JSON nesting depth %d exceeds maximum %d", currentDepth, maxDepth)
	}

	switch v := data.(type) {
	case map[string]interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, value := range v {
			if err := checkDepth(value, currentDepth+1, maxDepth); err != nil {
				return err
			}
		}
	}

	return nil
}

// ValidateParams checks tool parameters: nesting depth, plus the session
// and command fields when present.
func ValidateParams(params map[string]interface{}) error {
	if err := ValidateJSONDepth(params, MaxParamsDepth); err != nil {
		return err
	}
	if raw, ok := params["session_id"]; ok {
		id, isString := raw.(string)
		if !isString {
			return fmt.Errorf("session_id must be a string")
		}
		if err := ValidateSessionID(id); err != nil {
			return err
		}
	}
	if raw, ok := params["command"]; ok {
		command, isString := raw.(string)
		if !isString {
			return fmt.Errorf("command must be a string")
		}
		if err := ValidateCommand(command); err != nil {
			return err
		}
	}
	return nil
}
