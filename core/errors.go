package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ConnectorErrorBadInput              = "CONNECTORS_BAD_INPUT"
	ConnectorErrorNotFound              = "CONNECTORS_NOT_FOUND"
	ConnectorErrorNotConnected          = "CONNECTORS_NOT_CONNECTED"
	ConnectorErrorAuthRequired          = "CONNECTORS_AUTH_REQUIRED"
	ConnectorErrorOAuthStateInvalid     = "CONNECTORS_OAUTH_STATE_INVALID"
	ConnectorErrorCapabilityUnsupported = "CONNECTORS_CAPABILITY_UNSUPPORTED"
	ConnectorErrorDuplicate             = "CONNECTORS_DUPLICATE_CONNECTOR"
	ConnectorErrorRateLimited           = "CONNECTORS_RATE_LIMITED"
	ConnectorErrorVendorRejected        = "CONNECTORS_VENDOR_REJECTED"
	ConnectorErrorVendorUnavailable     = "CONNECTORS_VENDOR_UNAVAILABLE"
	ConnectorErrorRetryExhausted        = "CONNECTORS_RETRY_EXHAUSTED"
	ConnectorErrorDecryptFailed         = "CONNECTORS_DECRYPT_FAILED"
	ConnectorErrorInternal              = "CONNECTORS_INTERNAL_ERROR"
)

func connectorErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureConnectorErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "connector") && strings.Contains(msg, "not registered"):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorNotFound)
	case strings.Contains(msg, "already registered"):
		return newConnectorError(err.Error(), goerrors.CategoryConflict, ConnectorErrorDuplicate)
	case strings.Contains(msg, "capability") && strings.Contains(msg, "not supported"):
		return newConnectorError(err.Error(), goerrors.CategoryOperation, ConnectorErrorCapabilityUnsupported)
	case strings.Contains(msg, "oauth state"):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorOAuthStateInvalid)
	case strings.Contains(msg, "not connected"), strings.Contains(msg, "credential not found"):
		return newConnectorError(err.Error(), goerrors.CategoryNotFound, ConnectorErrorNotConnected)
	case strings.Contains(msg, "decrypt"), strings.Contains(msg, "key id mismatch"), strings.Contains(msg, "key version mismatch"):
		return newConnectorError(err.Error(), goerrors.CategoryInternal, ConnectorErrorDecryptFailed)
	case strings.Contains(msg, "token expired"), strings.Contains(msg, "reauthorization required"):
		return newConnectorError(err.Error(), goerrors.CategoryAuth, ConnectorErrorAuthRequired)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newConnectorError(err.Error(), goerrors.CategoryRateLimit, ConnectorErrorRateLimited)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newConnectorError(err.Error(), goerrors.CategoryBadInput, ConnectorErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureConnectorErrorEnvelope(mapped)
}

func newConnectorError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureConnectorErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureConnectorErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = connectorHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultConnectorTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultConnectorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ConnectorErrorBadInput
	case goerrors.CategoryNotFound:
		return ConnectorErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ConnectorErrorAuthRequired
	case goerrors.CategoryConflict:
		return ConnectorErrorDuplicate
	case goerrors.CategoryRateLimit:
		return ConnectorErrorRateLimited
	case goerrors.CategoryOperation:
		return ConnectorErrorCapabilityUnsupported
	case goerrors.CategoryExternal:
		return ConnectorErrorVendorUnavailable
	default:
		return ConnectorErrorInternal
	}
}

func connectorHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
