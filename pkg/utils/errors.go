package utils

import (
	"fmt"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityLow ErrorSeverity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// ErrorCategory represents the category of an error
type ErrorCategory int

const (
	CategorySystem ErrorCategory = iota
	CategoryProvider
	CategoryFileSystem
	CategoryParsing
	CategoryValidation
	CategoryExecution
)

// StructuredError represents a standardized error with a machine-readable
// code and human-readable remediation guidance.
type StructuredError struct {
	Code        string
	Message     string
	Severity    ErrorSeverity
	Category    ErrorCategory
	Remediation string
	Resource    string
	RootCause   error
	Timestamp   int64
	Recoverable bool
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.RootCause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.RootCause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for compatibility with errors.Is and errors.As
func (e *StructuredError) Unwrap() error {
	return e.RootCause
}

// NewStructuredError creates a new structured error
func NewStructuredError(code, message string, severity ErrorSeverity, category ErrorCategory, rootCause error) *StructuredError {
	return &StructuredError{
		Code:        code,
		Message:     message,
		Severity:    severity,
		Category:    category,
		RootCause:   rootCause,
		Timestamp:   time.Now().Unix(),
		Recoverable: true,
	}
}

// NewParseError creates a parsing-related error
func NewParseError(detail string, rootCause error) *StructuredError {
	return NewStructuredError(
		"PARSE_FAULT",
		fmt.Sprintf("Failed to parse specification: %s", detail),
		SeverityMedium,
		CategoryParsing,
		rootCause,
	).WithRemediation("Check the front matter delimiters and YAML syntax near the reported location")
}

// NewFileSystemError creates a filesystem-related error
func NewFileSystemError(operation, path string, rootCause error) *StructuredError {
	return NewStructuredError(
		"FS_ERROR",
		fmt.Sprintf("Filesystem error during %s", operation),
		SeverityMedium,
		CategoryFileSystem,
		rootCause,
	).WithResource(path)
}

// NewExecutionError creates a phase execution error
func NewExecutionError(phase string, rootCause error) *StructuredError {
	return NewStructuredError(
		"PHASE_FAILURE",
		fmt.Sprintf("Phase %s failed", phase),
		SeverityHigh,
		CategoryExecution,
		rootCause,
	).WithResource(phase).WithRemediation("Fix the reported cause and re-run; completed phases are not re-executed")
}

// WithRemediation attaches remediation guidance to the error
func (e *StructuredError) WithRemediation(remediation string) *StructuredError {
	e.Remediation = remediation
	return e
}

// WithResource adds resource context
func (e *StructuredError) WithResource(resource string) *StructuredError {
	e.Resource = resource
	return e
}

// MakeUnrecoverable marks the error as unrecoverable
func (e *StructuredError) MakeUnrecoverable() *StructuredError {
	e.Recoverable = false
	return e
}

// IsRecoverable checks if the error can be recovered from
func (e *StructuredError) IsRecoverable() bool {
	return e.Recoverable
}

// IsCriticalError checks if an error is critical
func IsCriticalError(err error) bool {
	if structuredErr, ok := err.(*StructuredError); ok {
		return structuredErr.Severity >= SeverityCritical
	}
	return false
}

// FormatError formats an error for display, including remediation when present
func FormatError(err error) string {
	if structuredErr, ok := err.(*StructuredError); ok {
		out := fmt.Sprintf("Error [%s]: %s", structuredErr.Code, structuredErr.Message)
		if structuredErr.Resource != "" {
			out += fmt.Sprintf(" | Resource: %s", structuredErr.Resource)
		}
		if structuredErr.RootCause != nil {
			out += fmt.Sprintf(" | Root Cause: %v", structuredErr.RootCause)
		}
		if structuredErr.Remediation != "" {
			out += fmt.Sprintf(" | Remediation: %s", structuredErr.Remediation)
		}
		return out
	}
	return err.Error()
}
