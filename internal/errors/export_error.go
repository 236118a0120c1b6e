package errors

import "fmt"

// ExportError reports a failed export request. The full backend
// response is preserved so nothing gets swallowed on the way to the
// user.
type ExportError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *ExportError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("export failed: %s: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("export failed: %s", e.Status)
}

// NewExportError creates an ExportError from an HTTP response.
func NewExportError(statusCode int, status, body string) *ExportError {
	return &ExportError{
		StatusCode: statusCode,
		Status:     status,
		Body:       body,
	}
}
