package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a SiteError if the
// input is not already one.
func Wrap(err error, errType ErrorType, code, message string) *SiteError {
	if err == nil {
		return nil
	}

	var se *SiteError
	if errors.As(err, &se) {
		return &SiteError{
			Type:        errType,
			Code:        code,
			Message:     message,
			Cause:       se,
			Context:     se.Context,
			Component:   se.Component,
			FilePath:    se.FilePath,
			Line:        se.Line,
			Column:      se.Column,
			Recoverable: se.Recoverable,
		}
	}

	return &SiteError{
		Type:        errType,
		Code:        code,
		Message:     message,
		Cause:       err,
		Recoverable: errType == ErrorTypeValidation || errType == ErrorTypeBuild || errType == ErrorTypeResolve,
	}
}

// WrapBuild wraps an error as a build error.
func WrapBuild(err error, code, message string) *SiteError {
	return Wrap(err, ErrorTypeBuild, code, message)
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *SiteError {
	se := Wrap(err, ErrorTypeIO, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *SiteError {
	se := Wrap(err, ErrorTypeConfig, code, message)
	if se != nil {
		se.Recoverable = false
	}
	return se
}

// GetErrorContext flattens a SiteError into log fields.
func GetErrorContext(err error) map[string]interface{} {
	var se *SiteError
	if errors.As(err, &se) {
		ctx := make(map[string]interface{}, len(se.Context)+4)
		for k, v := range se.Context {
			ctx[k] = v
		}
		if se.Component != "" {
			ctx["component"] = se.Component
		}
		if se.FilePath != "" {
			ctx["file"] = se.FilePath
			if se.Line > 0 {
				ctx["line"] = se.Line
			}
		}
		ctx["type"] = string(se.Type)
		ctx["code"] = se.Code
		ctx["recoverable"] = se.Recoverable
		return ctx
	}

	return map[string]interface{}{
		"message": err.Error(),
		"type":    "unknown",
	}
}

// Fields returns GetErrorContext as an alternating key/value slice suitable
// for logging.Logger calls.
func Fields(err error) []interface{} {
	ctx := GetErrorContext(err)
	fields := make([]interface{}, 0, len(ctx)*2)
	for k, v := range ctx {
		fields = append(fields, k, v)
	}
	return fields
}
