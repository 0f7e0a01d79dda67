package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("no configuration file found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrExtendsCycle    = errors.New("profile extends cycle")
	ErrDuplicateRuleID = errors.New("duplicate rule id")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// ConfigError is a fatal configuration failure: the file could not be read,
// parsed or validated, or a profile could not be resolved. It is always
// reported before any rule runs.
type ConfigError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("config")
	if e.Path != "" {
		fmt.Fprintf(&b, " %s", e.Path)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if len(e.Problems) > 0 {
		fmt.Fprintf(&b, ":\n  - %s", strings.Join(e.Problems, "\n  - "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }
