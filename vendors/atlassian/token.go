package atlassian

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connectors/core"
)

const maxTokenResponseBytes = 1 << 20

type tokenPayload struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Scope            string `json:"scope"`
	ErrorCode        string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// fetchToken exchanges an authorization grant at the token endpoint. The
// client secret travels via basic auth unless the deployment requires it in
// the form body.
func (c *Connector) fetchToken(ctx context.Context, form url.Values) (core.TokenMaterial, []string, error) {
	endpoint := c.cfg.tokenURL()
	form.Set("client_id", c.cfg.ClientID)
	if c.cfg.ClientSecretInBody {
		form.Set("client_secret", c.cfg.ClientSecret)
	}

	timeout := c.cfg.TokenRequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return core.TokenMaterial{}, nil, vendorWrapError(
			err, goerrors.CategoryInternal, "atlassian: build token request", http.StatusInternalServerError,
		)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	request.Header.Set("Accept", "application/json")
	if !c.cfg.ClientSecretInBody && c.cfg.ClientSecret != "" {
		request.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}

	response, err := c.httpClient().Do(request)
	if err != nil {
		return core.TokenMaterial{}, nil, vendorWrapError(
			err, goerrors.CategoryExternal, "atlassian: token endpoint unreachable", http.StatusBadGateway,
		)
	}
	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBytes))
	if err != nil {
		return core.TokenMaterial{}, nil, vendorWrapError(
			err, goerrors.CategoryExternal, "atlassian: read token response", http.StatusBadGateway,
		)
	}

	payload, err := parseTokenPayload(response.Header.Get("Content-Type"), body)
	if err != nil {
		return core.TokenMaterial{}, nil, err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 || payload.ErrorCode != "" {
		return core.TokenMaterial{}, nil, tokenExchangeError(response.StatusCode, payload)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return core.TokenMaterial{}, nil, vendorError(
			"atlassian: token response missing access token",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			nil,
		)
	}

	material := core.TokenMaterial{
		TokenType:    normalizeTokenType(payload.TokenType),
		AccessToken:  payload.AccessToken,
		RefreshToken: payload.RefreshToken,
		ExpiresAt:    c.resolveExpiresAt(payload.ExpiresIn),
	}
	return material, parseScopeList(payload.Scope), nil
}

func tokenExchangeError(statusCode int, payload tokenPayload) error {
	message := strings.TrimSpace(payload.ErrorDescription)
	if message == "" {
		message = strings.TrimSpace(payload.ErrorCode)
	}
	if message == "" {
		message = "token exchange failed"
	}
	metadata := map[string]any{"status_code": statusCode}
	if payload.ErrorCode != "" {
		metadata["vendor_error"] = payload.ErrorCode
	}

	category := goerrors.CategoryExternal
	code := http.StatusBadGateway
	switch strings.ToLower(strings.TrimSpace(payload.ErrorCode)) {
	case "invalid_grant", "invalid_client", "unauthorized_client", "access_denied":
		category = goerrors.CategoryAuth
		code = http.StatusUnauthorized
	case "invalid_request", "invalid_scope", "unsupported_grant_type":
		category = goerrors.CategoryValidation
		code = http.StatusBadRequest
	}
	return vendorError("atlassian: "+message, category, code, metadata)
}

// parseTokenPayload accepts either JSON or form-encoded token responses.
func parseTokenPayload(contentType string, body []byte) (tokenPayload, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return tokenPayload{}, nil
	}

	if strings.Contains(contentType, "json") || strings.HasPrefix(trimmed, "{") {
		var payload tokenPayload
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return tokenPayload{}, vendorWrapError(
				err, goerrors.CategoryExternal, "atlassian: decode token response", http.StatusBadGateway,
			)
		}
		return payload, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return tokenPayload{}, vendorWrapError(
			err, goerrors.CategoryExternal, "atlassian: decode token response", http.StatusBadGateway,
		)
	}
	payload := tokenPayload{
		AccessToken:      values.Get("access_token"),
		RefreshToken:     values.Get("refresh_token"),
		TokenType:        values.Get("token_type"),
		Scope:            values.Get("scope"),
		ErrorCode:        values.Get("error"),
		ErrorDescription: values.Get("error_description"),
	}
	if raw := values.Get("expires_in"); raw != "" {
		if expiresIn, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			payload.ExpiresIn = expiresIn
		}
	}
	return payload, nil
}

func (c *Connector) resolveExpiresAt(expiresIn int64) *time.Time {
	now := c.now()
	if expiresIn > 0 {
		expiry := now.Add(time.Duration(expiresIn) * time.Second)
		return &expiry
	}
	if c.cfg.TokenTTL > 0 {
		expiry := now.Add(c.cfg.TokenTTL)
		return &expiry
	}
	return nil
}

func normalizeTokenType(tokenType string) string {
	tokenType = strings.TrimSpace(strings.ToLower(tokenType))
	if tokenType == "" {
		return "bearer"
	}
	return tokenType
}

func parseScopeList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	scopes := make([]string, 0, len(fields))
	for _, field := range fields {
		if field = strings.TrimSpace(field); field != "" {
			scopes = append(scopes, field)
		}
	}
	return scopes
}
