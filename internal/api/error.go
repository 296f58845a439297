package api

// HTTPError carries the status and message an endpoint wants the client to
// see. Message is sent to the client; ErrorLog stays server-side.
type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.ErrorLog
}

// ApiError is the JSON error body written to clients.
type ApiError struct {
	Error string `json:"message"`
}
