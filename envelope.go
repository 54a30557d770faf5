package connectors

import (
	"github.com/goliatone/go-connectors/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	EnvelopeStatusOK    = "ok"
	EnvelopeStatusError = "error"
)

// Envelope is the boundary response shape. The core never returns it;
// callers wrap typed results and errors at the outermost edge.
type Envelope struct {
	Status       string `json:"status"`
	Data         any    `json:"data,omitempty"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message,omitempty"`
	RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
}

func OK(data any) Envelope {
	return Envelope{
		Status: EnvelopeStatusOK,
		Data:   data,
	}
}

// FromError reduces any error to the envelope shape. Rich errors carry
// their text code and message through; everything else collapses to the
// internal error code.
func FromError(err error) Envelope {
	if err == nil {
		return OK(nil)
	}

	envelope := Envelope{
		Status:  EnvelopeStatusError,
		Code:    core.ConnectorErrorInternal,
		Message: err.Error(),
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return envelope
	}
	if rich.TextCode != "" {
		envelope.Code = rich.TextCode
	}
	if rich.Message != "" {
		envelope.Message = rich.Message
	}
	envelope.RetryAfterMS = retryAfterMillis(rich)
	return envelope
}

func retryAfterMillis(rich *goerrors.Error) int64 {
	if rich == nil || len(rich.Metadata) == 0 {
		return 0
	}
	raw, ok := rich.Metadata["retry_after_ms"]
	if !ok {
		return 0
	}
	switch value := raw.(type) {
	case int64:
		return value
	case int:
		return int64(value)
	case float64:
		return int64(value)
	}
	return 0
}
