// Package internal holds helpers shared by the SQL storage engines.
package internal

import (
	"fmt"
	"regexp"
)

// PrefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists (empty or all-0xff prefix).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// ValidateTableName returns an error for names IsValidTableName rejects.
func ValidateTableName(name string) error {
	if name == "" {
		return fmt.Errorf("validate table name: table name cannot be empty")
	}
	if !IsValidTableName(name) {
		return fmt.Errorf("validate table name: invalid table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", name)
	}
	return nil
}

// Row is one key/value pair read from a SQL engine.
type Row struct {
	Key   []byte
	Value []byte
}
