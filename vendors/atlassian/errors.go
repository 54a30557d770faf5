package atlassian

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connectors/core"
)

func vendorError(message string, category goerrors.Category, code int, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(vendorTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func vendorWrapError(source error, category goerrors.Category, message string, code int) error {
	if source == nil {
		return vendorError(message, category, code, nil)
	}
	return goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(vendorTextCode(category))
}

func vendorTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ConnectorErrorVendorRejected
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return core.ConnectorErrorAuthRequired
	case goerrors.CategoryRateLimit:
		return core.ConnectorErrorRateLimited
	case goerrors.CategoryExternal:
		return core.ConnectorErrorVendorUnavailable
	default:
		return core.ConnectorErrorInternal
	}
}

// statusError maps a non-2xx vendor response onto the error taxonomy. Auth
// failures are permanent, throttles and server errors are retryable.
func statusError(connectorID string, res core.TransportResponse) error {
	metadata := map[string]any{
		"connector_id": connectorID,
		"status_code":  res.StatusCode,
	}
	if snippet := bodySnippet(res.Body); snippet != "" {
		metadata["vendor_response"] = snippet
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized, res.StatusCode == http.StatusForbidden:
		return vendorError(
			"atlassian: vendor rejected credentials, reauthorization required",
			goerrors.CategoryAuth,
			res.StatusCode,
			metadata,
		)
	case res.StatusCode == http.StatusTooManyRequests:
		if retryAfter, ok := retryAfterHint(res.Headers); ok {
			metadata["retry_after_ms"] = retryAfter.Milliseconds()
		}
		return vendorError(
			"atlassian: vendor rate limit exceeded",
			goerrors.CategoryRateLimit,
			http.StatusTooManyRequests,
			metadata,
		)
	case res.StatusCode == http.StatusRequestTimeout, res.StatusCode >= 500:
		return vendorError(
			"atlassian: vendor unavailable",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			metadata,
		)
	default:
		return vendorError(
			"atlassian: vendor rejected request",
			goerrors.CategoryValidation,
			res.StatusCode,
			metadata,
		)
	}
}

func retryAfterHint(headers map[string]string) (time.Duration, bool) {
	for key, value := range headers {
		if !strings.EqualFold(strings.TrimSpace(key), "retry-after") {
			continue
		}
		seconds, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	return 0, false
}

func bodySnippet(body []byte) string {
	const maxSnippet = 256
	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > maxSnippet {
		trimmed = trimmed[:maxSnippet]
	}
	return trimmed
}
