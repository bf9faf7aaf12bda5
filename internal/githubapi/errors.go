package githubapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const (
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant    = "%s payload encoding failed: %s"
	invalidInputErrorTemplateConstant       = "%s: %s"
	apiErrorTemplateConstant                = "github: HTTP %d: %s"
	apiValidationErrorTemplateConstant      = "; %s.%s: %s"
	tokenSourceNotConfiguredMessageConstant = "github token source not configured"
)

// OperationName describes a named GitHub REST workflow supported by the client.
type OperationName string

var (
	// ErrTokenSourceNotConfigured indicates the client was constructed without a token source.
	ErrTokenSourceNotConfigured = errors.New(tokenSourceNotConfiguredMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub REST operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates JSON encoding issues.
type PayloadEncodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// APIError represents a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string
	Errors           []ValidationError
}

// ValidationError describes a field-level failure returned on 422 responses.
type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

// Error renders the status code, message, and validation details.
func (apiError *APIError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, apiErrorTemplateConstant, apiError.StatusCode, apiError.Message)
	for _, validationError := range apiError.Errors {
		detail := validationError.Message
		if len(detail) == 0 {
			detail = validationError.Code
		}
		fmt.Fprintf(&builder, apiValidationErrorTemplateConstant, validationError.Resource, validationError.Field, detail)
	}
	return builder.String()
}

// StatusCode extracts the HTTP status of an APIError anywhere in the chain.
func StatusCode(err error) (int, bool) {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return 0, false
	}
	return apiError.StatusCode, true
}

// IsUnprocessableEntity reports whether err is a 422 response, which GitHub
// returns when creating a reference that already exists.
func IsUnprocessableEntity(err error) bool {
	statusCode, found := StatusCode(err)
	return found && statusCode == http.StatusUnprocessableEntity
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	statusCode, found := StatusCode(err)
	return found && statusCode == http.StatusNotFound
}
