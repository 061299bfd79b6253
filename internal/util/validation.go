package util

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidatePort validates a TCP port number in the range 1-65535.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	return nil
}

// ValidateNonNegativePort validates a port that may be zero (meaning "derive" or "any").
func ValidateNonNegativePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 0 and 65535", port)
	}
	return nil
}

// CompileRegex compiles a non-empty regular expression pattern.
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("regex pattern is empty")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return re, nil
}

// ValidatePercentage validates a ratio in the range [0, 1].
func ValidatePercentage(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("invalid ratio %v: must be between 0 and 1", value)
	}
	return nil
}

// ValidatePattern validates a route pattern: non-empty, rooted, no whitespace.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("route pattern is empty")
	}
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route pattern %q must start with /", pattern)
	}
	if strings.ContainsAny(pattern, " \t\r\n") {
		return fmt.Errorf("route pattern %q must not contain whitespace", pattern)
	}
	return nil
}

// ValidateNonEmpty validates that a string is not empty.
func ValidateNonEmpty(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	return nil
}
