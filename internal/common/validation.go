package common

import (
	"sort"
	"strings"
)

// ValidationErrors collects field-level messages. It unwraps to ErrorValidation.
type ValidationErrors map[string][]string

// Add appends msg to the messages of field.
func (v ValidationErrors) Add(field, msg string) {
	v[field] = append(v[field], msg)
}

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(v[f], ", "))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrorValidation
}

// Err returns nil when no field failed, v otherwise.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
