package types

// Envelope wraps every successful API payload as {"data": ...}. Clients
// decode into Envelope[T] for the type they expect.
type Envelope[T any] struct {
	Data T `json:"data"`
}

type SuccessEnvelope = Envelope[any]

// APIError is the body of an error envelope. RequestID echoes the
// X-Request-Id header so a caller can quote it back to support.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
