// Package types holds the wire envelopes shared by every handler.
package types

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public half of a typed error.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Ack is the body returned to webhook senders once a delivery is accepted,
// whether or not it changed anything.
type Ack struct {
	OK bool `json:"ok"`
}
