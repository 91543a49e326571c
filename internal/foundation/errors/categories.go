package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig represents invalid effective configuration (InvalidConfig).
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound is used for missing settings profiles (ProfileNotFound).
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLock means the skip cache store is held by another run (StoreLocked).
	CategoryLock ErrorCategory = "lock"

	// Per-candidate categories. These are recovered and end up in the run report.
	CategoryExtraction  ErrorCategory = "extraction"
	CategoryWrite       ErrorCategory = "write"
	CategoryFileSystem  ErrorCategory = "filesystem"
	CategoryInterrupted ErrorCategory = "interrupted"

	// CategoryCache marks a skip cache that could not be loaded (CacheLoadError).
	CategoryCache ErrorCategory = "cache"

	// CategoryExport is the aggregate "run finished with failures" outcome.
	CategoryExport   ErrorCategory = "export"
	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution before any file is touched
	SeverityError   ErrorSeverity = "error"   // Fails the current candidate
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext, len(c)+len(other))
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}
