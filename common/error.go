package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
)

type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// ErrorStatus pairs a sentinel error with the HTTP status it maps to.
type ErrorStatus struct {
	Err    error
	Status int
}

// StoreErrors maps shared store failures.
var StoreErrors = []ErrorStatus{
	{Err: filestore.ErrLockTimeout, Status: http.StatusServiceUnavailable},
	{Err: filestore.ErrCorruptStore, Status: http.StatusInternalServerError},
}

// Classify turns err into an APIError using the first entry of table that
// matches with errors.Is, falling back to the store errors and then 500.
func Classify(err error, table ...ErrorStatus) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	for _, group := range [][]ErrorStatus{table, StoreErrors} {
		for _, m := range group {
			if errors.Is(err, m.Err) {
				return APIError{Status: m.Status, Message: err.Error()}
			}
		}
	}

	return APIError{Status: http.StatusInternalServerError, Message: err.Error()}
}
