package errors

// Reason represents machine-readable reason codes for client faults.
type Reason string

const (
	// Connection
	ReasonNotConnected   Reason = "not_connected"
	ReasonConnectionLost Reason = "connection_lost"

	// Session preconditions
	ReasonNoActiveSession Reason = "no_active_session"
	ReasonNoPlan          Reason = "no_plan"
	ReasonNoReport        Reason = "no_report"
	ReasonEmptyQuery      Reason = "empty_query"
	ReasonEmptyFeedback   Reason = "empty_feedback"

	// Backend
	ReasonBackendError Reason = "backend_error"
	ReasonExportFailed Reason = "export_failed"
)

// ClientError is a structured client fault. Message is the technical
// error text for logs; UIMessage is what gets shown on screen.
type ClientError struct {
	Reason    Reason
	Message   string
	UIMessage string
	Details   map[string]interface{}
}

// NewClientError creates a new ClientError with the given parameters.
func NewClientError(reason Reason, message, uiMessage string, details map[string]interface{}) *ClientError {
	return &ClientError{
		Reason:    reason,
		Message:   message,
		UIMessage: uiMessage,
		Details:   details,
	}
}

func (e *ClientError) Error() string {
	return e.Message
}

// Is matches two ClientErrors by reason code, so callers can test
// errors.Is(err, errors.NotConnected()) without comparing instances.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Reason == e.Reason
}

// NotConnected creates a ClientError for actions attempted while the
// connection is not ready.
func NotConnected() *ClientError {
	return NewClientError(
		ReasonNotConnected,
		"connection not ready",
		"Not connected to the research backend. Waiting to reconnect...",
		nil,
	)
}

// ConnectionLost creates a ClientError for a dropped connection.
func ConnectionLost(endpoint string) *ClientError {
	return NewClientError(
		ReasonConnectionLost,
		"connection to backend lost",
		"Connection lost. Reconnecting...",
		map[string]interface{}{
			"endpoint": endpoint,
		},
	)
}

// NoActiveSession creates a ClientError for operations that need a
// session the backend has not assigned yet.
func NoActiveSession() *ClientError {
	return NewClientError(
		ReasonNoActiveSession,
		"no active research session",
		"No active session. Run a research task first.",
		nil,
	)
}

// NoPlan creates a ClientError for execute or refine requests made
// before any plan was generated.
func NoPlan() *ClientError {
	return NewClientError(
		ReasonNoPlan,
		"no research plan available",
		"No research plan yet. Create a plan first.",
		nil,
	)
}

// EmptyQuery creates a ClientError for blank research queries.
func EmptyQuery() *ClientError {
	return NewClientError(
		ReasonEmptyQuery,
		"research query is empty",
		"Please enter a research question.",
		nil,
	)
}

// EmptyFeedback creates a ClientError for refine requests without
// feedback text.
func EmptyFeedback() *ClientError {
	return NewClientError(
		ReasonEmptyFeedback,
		"refine feedback is empty",
		"Please describe how the plan should change.",
		nil,
	)
}

// NoReport creates a ClientError for export attempts before any
// research run has completed.
func NoReport() *ClientError {
	return NewClientError(
		ReasonNoReport,
		"no report available",
		"No report yet. Complete a research run first.",
		nil,
	)
}

// BackendFault creates a ClientError carrying an error reported by the
// backend itself.
func BackendFault(message string) *ClientError {
	return NewClientError(
		ReasonBackendError,
		message,
		message,
		nil,
	)
}
