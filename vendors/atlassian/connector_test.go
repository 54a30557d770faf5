package atlassian

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/ratelimit"
)

type fakeProduct struct{}

func (fakeProduct) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:          "fake",
		DisplayName: "Fake",
		Capabilities: []core.Capability{
			core.CapabilityOAuth,
			core.CapabilityPAT,
			core.CapabilitySearch,
		},
		RequiredScopes: []string{"read:fake"},
	}
}

func (fakeProduct) ProbePath() string { return "/rest/me" }

func (fakeProduct) ParseIdentity(body []byte) string {
	var payload struct {
		Email string `json:"email"`
	}
	_ = json.Unmarshal(body, &payload)
	return payload.Email
}

func (fakeProduct) SearchRequest(baseURL string, req core.SearchRequest) (core.TransportRequest, error) {
	return core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + "/rest/search",
		Query:  map[string]string{"q": req.Query},
	}, nil
}

func (fakeProduct) ParseSearchPage(_ string, body []byte, req core.SearchRequest) (core.SearchPage, error) {
	var payload struct {
		Titles []string `json:"titles"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.SearchPage{}, err
	}
	items := make([]core.NormalizedItem, 0, len(payload.Titles))
	for _, title := range payload.Titles {
		items = append(items, core.NormalizedItem{Title: title, Kind: "thing"})
	}
	return core.SearchPage{Items: items, Page: req.Page, PerPage: req.PerPage, Total: len(items)}, nil
}

func (fakeProduct) CreateRequest(baseURL string, _ core.CreateRequest) (core.TransportRequest, error) {
	return core.TransportRequest{Method: http.MethodPost, URL: baseURL + "/rest/create"}, nil
}

func (fakeProduct) ParseCreatedItem(_ string, _ []byte) (core.CreatedItem, error) {
	return core.CreatedItem{Item: core.NormalizedItem{ID: "created"}}, nil
}

func (fakeProduct) CollectionsRequest(baseURL string) (core.TransportRequest, error) {
	return core.TransportRequest{Method: http.MethodGet, URL: baseURL + "/rest/collections"}, nil
}

func (fakeProduct) ParseCollections(_ []byte) ([]core.Collection, error) {
	return []core.Collection{{Key: "COL", Name: "Collection"}}, nil
}

type fakeTransport struct {
	requests  []core.TransportRequest
	responses []core.TransportResponse
	err       error
}

func (f *fakeTransport) Kind() string { return "fake" }

func (f *fakeTransport) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return core.TransportResponse{}, f.err
	}
	if len(f.responses) == 0 {
		return core.TransportResponse{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
	}
	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return response, nil
}

type fakeDoer struct {
	requests []*http.Request
	bodies   []string
	status   int
	payload  string
	header   http.Header
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.requests = append(f.requests, req)
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		f.bodies = append(f.bodies, string(raw))
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	header := f.header
	if header == nil {
		header = http.Header{"Content-Type": []string{"application/json"}}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(f.payload)),
	}, nil
}

func testCredential() core.CredentialRecord {
	return core.CredentialRecord{
		TenantID:    "acme",
		ConnectorID: "fake",
		Mode:        core.AuthModeOAuth,
		Token:       core.TokenMaterial{TokenType: "bearer", AccessToken: "access-token"},
		BaseURL:     "https://acme.example.com",
	}
}

func mustConnector(t *testing.T, cfg Config) *Connector {
	t.Helper()
	connector, err := New(fakeProduct{}, cfg)
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}
	return connector
}

func TestBuildAuthorizationURL(t *testing.T) {
	connector := mustConnector(t, Config{ClientID: "client-1"})

	rawURL, err := connector.BuildAuthorizationURL(
		context.Background(), "acme", "state-token", "https://app.example.com/cb", []string{"read:fake", "write:fake"},
	)
	if err != nil {
		t.Fatalf("build url: %v", err)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasPrefix(rawURL, DefaultAuthURL+"?") {
		t.Fatalf("expected default auth endpoint, got %s", rawURL)
	}
	query := parsed.Query()
	if query.Get("audience") != DefaultAudience {
		t.Fatalf("missing audience, got %q", query.Get("audience"))
	}
	if query.Get("prompt") != "consent" {
		t.Fatalf("missing prompt parameter")
	}
	if query.Get("state") != "state-token" {
		t.Fatalf("unexpected state %q", query.Get("state"))
	}
	if query.Get("scope") != "read:fake write:fake" {
		t.Fatalf("unexpected scope %q", query.Get("scope"))
	}
	if query.Get("response_type") != "code" {
		t.Fatalf("unexpected response type %q", query.Get("response_type"))
	}
}

func TestBuildAuthorizationURLRequiresClientID(t *testing.T) {
	connector := mustConnector(t, Config{})

	_, err := connector.BuildAuthorizationURL(context.Background(), "acme", "state", "https://cb", nil)
	if err == nil {
		t.Fatalf("expected missing client id error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryOperation {
		t.Fatalf("expected operation category, got %v", err)
	}
}

func TestExchangeCode(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doer := &fakeDoer{payload: `{
		"access_token": "new-access",
		"refresh_token": "new-refresh",
		"token_type": "Bearer",
		"expires_in": 3600,
		"scope": "read:fake write:fake"
	}`}
	connector := mustConnector(t, Config{
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		HTTPClient:   doer,
		Now:          func() time.Time { return now },
	})

	material, scopes, err := connector.ExchangeCode(context.Background(), "auth-code", "https://app.example.com/cb")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if material.AccessToken != "new-access" || material.RefreshToken != "new-refresh" {
		t.Fatalf("unexpected material: %+v", material)
	}
	if material.TokenType != "bearer" {
		t.Fatalf("expected normalized token type, got %q", material.TokenType)
	}
	if material.ExpiresAt == nil || !material.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry: %v", material.ExpiresAt)
	}
	if len(scopes) != 2 || scopes[0] != "read:fake" {
		t.Fatalf("unexpected scopes: %v", scopes)
	}

	if len(doer.requests) != 1 {
		t.Fatalf("expected one token request, got %d", len(doer.requests))
	}
	request := doer.requests[0]
	if request.URL.String() != DefaultTokenURL {
		t.Fatalf("unexpected token endpoint %s", request.URL)
	}
	user, pass, ok := request.BasicAuth()
	if !ok || user != "client-1" || pass != "secret-1" {
		t.Fatalf("expected basic auth with client credentials")
	}
	form, err := url.ParseQuery(doer.bodies[0])
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "auth-code" {
		t.Fatalf("unexpected form: %s", doer.bodies[0])
	}
	if form.Get("client_secret") != "" {
		t.Fatalf("secret must not travel in the body by default")
	}
}

func TestExchangeCodeSecretInBody(t *testing.T) {
	doer := &fakeDoer{payload: `{"access_token":"tok"}`}
	connector := mustConnector(t, Config{
		ClientID:           "client-1",
		ClientSecret:       "secret-1",
		ClientSecretInBody: true,
		HTTPClient:         doer,
	})

	if _, _, err := connector.ExchangeCode(context.Background(), "code", ""); err != nil {
		t.Fatalf("exchange: %v", err)
	}
	form, _ := url.ParseQuery(doer.bodies[0])
	if form.Get("client_secret") != "secret-1" {
		t.Fatalf("expected secret in body")
	}
	if _, _, ok := doer.requests[0].BasicAuth(); ok {
		t.Fatalf("expected no basic auth when secret travels in body")
	}
}

func TestExchangeCodeVendorDenied(t *testing.T) {
	doer := &fakeDoer{
		status:  http.StatusBadRequest,
		payload: `{"error":"invalid_grant","error_description":"code expired"}`,
	}
	connector := mustConnector(t, Config{ClientID: "client-1", HTTPClient: doer})

	_, _, err := connector.ExchangeCode(context.Background(), "stale-code", "")
	if err == nil {
		t.Fatalf("expected exchange failure")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %v", err)
	}
	if !strings.Contains(richErr.Message, "code expired") {
		t.Fatalf("expected vendor description, got %q", richErr.Message)
	}
}

func TestExchangeCodeFormEncodedResponse(t *testing.T) {
	doer := &fakeDoer{
		payload: "access_token=tok&token_type=bearer&expires_in=60&scope=read%3Afake",
		header:  http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}},
	}
	connector := mustConnector(t, Config{ClientID: "client-1", HTTPClient: doer})

	material, scopes, err := connector.ExchangeCode(context.Background(), "code", "")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if material.AccessToken != "tok" {
		t.Fatalf("unexpected material: %+v", material)
	}
	if len(scopes) != 1 || scopes[0] != "read:fake" {
		t.Fatalf("unexpected scopes: %v", scopes)
	}
}

func TestValidatePATProbesIdentityEndpoint(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"email":"dev@acme.com"}`),
	}}}
	connector := mustConnector(t, Config{Transport: adapter})

	material, err := connector.ValidatePAT(context.Background(), core.PATCredentials{
		BaseURL:  "https://acme.example.com/",
		Identity: "dev@acme.com",
		Token:    "pat-token",
	})
	if err != nil {
		t.Fatalf("validate pat: %v", err)
	}
	if material.TokenType != "basic" || material.AccessToken != "pat-token" {
		t.Fatalf("unexpected material: %+v", material)
	}
	if material.Identity != "dev@acme.com" {
		t.Fatalf("unexpected identity %q", material.Identity)
	}

	request := adapter.requests[0]
	if request.URL != "https://acme.example.com/rest/me" {
		t.Fatalf("unexpected probe url %s", request.URL)
	}
	if !strings.HasPrefix(request.Headers["Authorization"], "Basic ") {
		t.Fatalf("expected basic auth header, got %q", request.Headers["Authorization"])
	}
}

func TestValidatePATRejectedCredentials(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{StatusCode: http.StatusUnauthorized}}}
	connector := mustConnector(t, Config{Transport: adapter})

	_, err := connector.ValidatePAT(context.Background(), core.PATCredentials{
		BaseURL:  "https://acme.example.com",
		Identity: "dev@acme.com",
		Token:    "bad-token",
	})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryAuth {
		t.Fatalf("expected auth category, got %v", err)
	}
	if richErr.TextCode != core.ConnectorErrorAuthRequired {
		t.Fatalf("unexpected text code %q", richErr.TextCode)
	}
}

func TestSearchSendsBearerToken(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"titles":["First","Second"]}`),
	}}}
	connector := mustConnector(t, Config{Transport: adapter})

	page, err := connector.Search(context.Background(), testCredential(), core.SearchRequest{
		Query: "demo", Page: 1, PerPage: 10,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(page.Items) != 2 || page.Total != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
	request := adapter.requests[0]
	if request.Headers["Authorization"] != "Bearer access-token" {
		t.Fatalf("unexpected auth header %q", request.Headers["Authorization"])
	}
	if request.URL != "https://acme.example.com/rest/search" {
		t.Fatalf("unexpected url %s", request.URL)
	}
}

func TestSearchRequiresBaseURL(t *testing.T) {
	connector := mustConnector(t, Config{Transport: &fakeTransport{}})
	credential := testCredential()
	credential.BaseURL = ""

	_, err := connector.Search(context.Background(), credential, core.SearchRequest{Query: "demo"})
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryBadInput {
		t.Fatalf("expected bad input, got %v", err)
	}
}

func TestSearchFallsBackToConfiguredBaseURL(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"titles":[]}`),
	}}}
	connector := mustConnector(t, Config{Transport: adapter, BaseURL: "https://fallback.example.com/"})
	credential := testCredential()
	credential.BaseURL = ""

	if _, err := connector.Search(context.Background(), credential, core.SearchRequest{Query: "demo"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if got := adapter.requests[0].URL; got != "https://fallback.example.com/rest/search" {
		t.Fatalf("unexpected url %s", got)
	}
}

func TestStatusErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		category goerrors.Category
		textCode string
	}{
		{"unauthorized", http.StatusUnauthorized, goerrors.CategoryAuth, core.ConnectorErrorAuthRequired},
		{"forbidden", http.StatusForbidden, goerrors.CategoryAuth, core.ConnectorErrorAuthRequired},
		{"throttled", http.StatusTooManyRequests, goerrors.CategoryRateLimit, core.ConnectorErrorRateLimited},
		{"server error", http.StatusBadGateway, goerrors.CategoryExternal, core.ConnectorErrorVendorUnavailable},
		{"rejected", http.StatusUnprocessableEntity, goerrors.CategoryValidation, core.ConnectorErrorVendorRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := &fakeTransport{responses: []core.TransportResponse{{StatusCode: tc.status}}}
			connector := mustConnector(t, Config{Transport: adapter})

			_, err := connector.Search(context.Background(), testCredential(), core.SearchRequest{Query: "q"})
			var richErr *goerrors.Error
			if !goerrors.As(err, &richErr) {
				t.Fatalf("expected rich error, got %T", err)
			}
			if richErr.Category != tc.category {
				t.Fatalf("expected %v, got %v", tc.category, richErr.Category)
			}
			if richErr.TextCode != tc.textCode {
				t.Fatalf("expected %q, got %q", tc.textCode, richErr.TextCode)
			}
		})
	}
}

func TestThrottledBucketShortCircuits(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusTooManyRequests,
		Headers:    map[string]string{"Retry-After": "60"},
	}}}
	connector := mustConnector(t, Config{
		Transport: adapter,
		RateLimit: ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()),
	})

	if _, err := connector.Search(context.Background(), testCredential(), core.SearchRequest{Query: "q"}); err == nil {
		t.Fatalf("expected throttle error")
	}

	_, err := connector.Search(context.Background(), testCredential(), core.SearchRequest{Query: "q"})
	if err == nil {
		t.Fatalf("expected short-circuit while bucket cools down")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Category != goerrors.CategoryRateLimit {
		t.Fatalf("expected rate limit category, got %v", err)
	}
	if len(adapter.requests) != 1 {
		t.Fatalf("expected no second vendor call, got %d", len(adapter.requests))
	}
}

func TestListCollections(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusOK,
		Body:       []byte(`{}`),
	}}}
	connector := mustConnector(t, Config{Transport: adapter})

	collections, err := connector.ListCollections(context.Background(), testCredential(), "")
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	if len(collections) != 1 || collections[0].Key != "COL" {
		t.Fatalf("unexpected collections: %+v", collections)
	}
}

func TestPATCredentialDispatchUsesBasicAuth(t *testing.T) {
	adapter := &fakeTransport{responses: []core.TransportResponse{{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"titles":[]}`),
	}}}
	connector := mustConnector(t, Config{Transport: adapter})
	credential := testCredential()
	credential.Mode = core.AuthModePAT
	credential.Token = core.TokenMaterial{TokenType: "basic", AccessToken: "pat-token", Identity: "dev@acme.com"}

	if _, err := connector.Search(context.Background(), credential, core.SearchRequest{Query: "q"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	header := adapter.requests[0].Headers["Authorization"]
	if header != basicAuthHeader("dev@acme.com", "pat-token") {
		t.Fatalf("unexpected auth header %q", header)
	}
}
