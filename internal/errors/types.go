// Package errors defines the structured error type used across sitecycle and
// helpers to classify build, resolution, deploy and configuration failures.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeBuild      ErrorType = "build"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeResolve    ErrorType = "resolve"
	ErrorTypeDeploy     ErrorType = "deploy"
	ErrorTypeInternal   ErrorType = "internal"
)

// SiteError is a structured error type with context.
type SiteError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	Component   string
	FilePath    string
	Line        int
	Column      int
	Recoverable bool
}

// Error implements the error interface.
func (e *SiteError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Component != "" {
		parts = append(parts, "component:"+e.Component)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *SiteError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code, so sentinel values built with the
// constructors below can be used with errors.Is.
func (e *SiteError) Is(target error) bool {
	var t *SiteError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *SiteError) WithContext(key string, value interface{}) *SiteError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *SiteError) WithLocation(filePath string, line, column int) *SiteError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithComponent adds component context.
func (e *SiteError) WithComponent(component string) *SiteError {
	e.Component = component

	return e
}

// NewValidationError creates a validation error.
func NewValidationError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeValidation,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewBuildError creates a build error. Build errors are recoverable: the dev
// server keeps serving the previous output.
func NewBuildError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeBuild,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewResolveError creates a module resolution error.
func NewResolveError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeResolve,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// NewDeployError creates a deployment hook error.
func NewDeployError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeDeploy,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *SiteError {
	return &SiteError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *SiteError {
	return &SiteError{
		Type:        ErrorTypeConfig,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Recoverable
	}

	return false
}

// IsBuildError checks if an error is build-related.
func IsBuildError(err error) bool {
	return hasType(err, ErrorTypeBuild)
}

// IsResolveError checks if an error came from module resolution.
func IsResolveError(err error) bool {
	return hasType(err, ErrorTypeResolve)
}

// IsDeployError checks if an error came from the deploy hook.
func IsDeployError(err error) bool {
	return hasType(err, ErrorTypeDeploy)
}

func hasType(err error, t ErrorType) bool {
	var se *SiteError
	if errors.As(err, &se) {
		return se.Type == t
	}

	return false
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodeBuildFailed      = "ERR_BUILD_FAILED"
	ErrCodeNoEntryPoints    = "ERR_NO_ENTRY_POINTS"
	ErrCodeWriteOutput      = "ERR_WRITE_OUTPUT"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeModuleNotFound   = "ERR_MODULE_NOT_FOUND"
	ErrCodeModuleFailed     = "ERR_MODULE_FAILED"
	ErrCodeModuleDuplicate  = "ERR_MODULE_DUPLICATE"
	ErrCodeDeployRequest    = "ERR_DEPLOY_REQUEST"
	ErrCodeDeployStatus     = "ERR_DEPLOY_STATUS"
	ErrCodeDeployHookUnset  = "ERR_DEPLOY_HOOK_UNSET"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeInternalError    = "ERR_INTERNAL"
	ErrCodeValidationFailed = "ERR_VALIDATION_FAILED"
)

// ErrInvalidPath creates a path validation error.
func ErrInvalidPath(path string) *SiteError {
	return NewValidationError(ErrCodeInvalidPath, "invalid path: "+path)
}

// ErrModuleNotFound reports a marker attribute value with no registered unit.
func ErrModuleNotFound(attribute, id string) *SiteError {
	return NewResolveError(
		ErrCodeModuleNotFound,
		fmt.Sprintf("%s not found: %q", attribute, id),
		nil,
	).WithComponent(id)
}

// ErrBuildFailed creates a build failure error.
func ErrBuildFailed(cause error) *SiteError {
	return NewBuildError(ErrCodeBuildFailed, "build failed", cause)
}
