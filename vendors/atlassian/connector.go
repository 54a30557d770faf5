// Package atlassian carries the OAuth and REST plumbing shared by the
// Atlassian cloud connectors. Product packages plug in request builders and
// response parsers for their own API surface.
package atlassian

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/ratelimit"
	"github.com/goliatone/go-connectors/transport"
)

const (
	DefaultAuthURL  = "https://auth.atlassian.com/authorize"
	DefaultTokenURL = "https://auth.atlassian.com/oauth/token"
	DefaultAudience = "api.atlassian.com"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Product supplies the API-specific half of a connector: which descriptor it
// registers under, and how requests and responses for its endpoints look.
// Builders receive the resolved site base URL and must not set auth headers.
type Product interface {
	Descriptor() core.Descriptor
	ProbePath() string
	ParseIdentity(body []byte) string
	SearchRequest(baseURL string, req core.SearchRequest) (core.TransportRequest, error)
	ParseSearchPage(baseURL string, body []byte, req core.SearchRequest) (core.SearchPage, error)
	CreateRequest(baseURL string, req core.CreateRequest) (core.TransportRequest, error)
	ParseCreatedItem(baseURL string, body []byte) (core.CreatedItem, error)
	CollectionsRequest(baseURL string) (core.TransportRequest, error)
	ParseCollections(body []byte) ([]core.Collection, error)
}

type Config struct {
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	AuthURL             string
	TokenURL            string
	Audience            string
	BaseURL             string
	TokenTTL            time.Duration
	TokenRequestTimeout time.Duration
	RequestTimeout      time.Duration
	HTTPClient          HTTPDoer
	Transport           core.TransportAdapter
	RateLimit           core.RateLimitPolicy
	Now                 func() time.Time
}

func (c Config) authURL() string {
	if strings.TrimSpace(c.AuthURL) != "" {
		return strings.TrimSpace(c.AuthURL)
	}
	return DefaultAuthURL
}

func (c Config) tokenURL() string {
	if strings.TrimSpace(c.TokenURL) != "" {
		return strings.TrimSpace(c.TokenURL)
	}
	return DefaultTokenURL
}

func (c Config) audience() string {
	if strings.TrimSpace(c.Audience) != "" {
		return strings.TrimSpace(c.Audience)
	}
	return DefaultAudience
}

// Connector implements the vendor surface for one Atlassian product.
type Connector struct {
	cfg       Config
	product   Product
	transport core.TransportAdapter
	policy    core.RateLimitPolicy
	nowFn     func() time.Time
}

func New(product Product, cfg Config) (*Connector, error) {
	if product == nil {
		return nil, fmt.Errorf("atlassian: product is required")
	}
	if err := product.Descriptor().Validate(); err != nil {
		return nil, err
	}

	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	return &Connector{
		cfg:       cfg,
		product:   product,
		transport: adapter,
		policy:    cfg.RateLimit,
		nowFn:     nowFn,
	}, nil
}

func (c *Connector) Descriptor() core.Descriptor {
	return c.product.Descriptor()
}

// BuildAuthorizationURL assembles the consent URL the caller redirects the
// user to. Atlassian requires the audience and prompt parameters on top of
// the standard authorization-code set.
func (c *Connector) BuildAuthorizationURL(
	_ context.Context,
	_ string,
	state string,
	redirectURI string,
	scopes []string,
) (string, error) {
	if strings.TrimSpace(c.cfg.ClientID) == "" {
		return "", vendorError(
			"atlassian: oauth client id is not configured",
			goerrors.CategoryOperation,
			http.StatusNotImplemented,
			nil,
		)
	}
	if strings.TrimSpace(state) == "" {
		return "", vendorError("atlassian: state is required", goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}
	if strings.TrimSpace(redirectURI) == "" {
		return "", vendorError("atlassian: redirect uri is required", goerrors.CategoryBadInput, http.StatusBadRequest, nil)
	}

	values := url.Values{}
	values.Set("audience", c.cfg.audience())
	values.Set("client_id", c.cfg.ClientID)
	values.Set("scope", strings.Join(scopes, " "))
	values.Set("redirect_uri", redirectURI)
	values.Set("state", state)
	values.Set("response_type", "code")
	values.Set("prompt", "consent")

	endpoint := c.cfg.authURL()
	separator := "?"
	if strings.Contains(endpoint, "?") {
		separator = "&"
	}
	return endpoint + separator + values.Encode(), nil
}

func (c *Connector) ExchangeCode(ctx context.Context, code, redirectURI string) (core.TokenMaterial, []string, error) {
	if strings.TrimSpace(code) == "" {
		return core.TokenMaterial{}, nil, vendorError(
			"atlassian: authorization code is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", strings.TrimSpace(code))
	if strings.TrimSpace(redirectURI) != "" {
		form.Set("redirect_uri", strings.TrimSpace(redirectURI))
	}
	return c.fetchToken(ctx, form)
}

// ValidatePAT probes the product's identity endpoint with basic auth. A
// successful probe yields token material carrying the verified identity.
func (c *Connector) ValidatePAT(ctx context.Context, creds core.PATCredentials) (core.TokenMaterial, error) {
	if err := creds.Validate(); err != nil {
		return core.TokenMaterial{}, err
	}

	baseURL := strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	request := core.TransportRequest{
		Method: http.MethodGet,
		URL:    baseURL + c.product.ProbePath(),
		Headers: map[string]string{
			"Authorization": basicAuthHeader(creds.Identity, creds.Token),
			"Accept":        "application/json",
		},
	}

	key := core.RateLimitKey{ConnectorID: c.product.Descriptor().ID, Bucket: "probe"}
	response, err := c.dispatch(ctx, key, request)
	if err != nil {
		return core.TokenMaterial{}, err
	}

	identity := strings.TrimSpace(c.product.ParseIdentity(response.Body))
	if identity == "" {
		identity = creds.Identity
	}
	return core.TokenMaterial{
		TokenType:   "basic",
		AccessToken: creds.Token,
		Identity:    identity,
	}, nil
}

func (c *Connector) Search(ctx context.Context, credential core.CredentialRecord, req core.SearchRequest) (core.SearchPage, error) {
	baseURL, err := c.resolveBaseURL(credential)
	if err != nil {
		return core.SearchPage{}, err
	}
	request, err := c.product.SearchRequest(baseURL, req)
	if err != nil {
		return core.SearchPage{}, err
	}
	response, err := c.authorizedDispatch(ctx, credential, "search", request)
	if err != nil {
		return core.SearchPage{}, err
	}
	return c.product.ParseSearchPage(baseURL, response.Body, req)
}

func (c *Connector) Create(ctx context.Context, credential core.CredentialRecord, req core.CreateRequest) (core.CreatedItem, error) {
	baseURL, err := c.resolveBaseURL(credential)
	if err != nil {
		return core.CreatedItem{}, err
	}
	request, err := c.product.CreateRequest(baseURL, req)
	if err != nil {
		return core.CreatedItem{}, err
	}
	response, err := c.authorizedDispatch(ctx, credential, "create", request)
	if err != nil {
		return core.CreatedItem{}, err
	}
	return c.product.ParseCreatedItem(baseURL, response.Body)
}

func (c *Connector) ListCollections(ctx context.Context, credential core.CredentialRecord, _ string) ([]core.Collection, error) {
	baseURL, err := c.resolveBaseURL(credential)
	if err != nil {
		return nil, err
	}
	request, err := c.product.CollectionsRequest(baseURL)
	if err != nil {
		return nil, err
	}
	response, err := c.authorizedDispatch(ctx, credential, "collections", request)
	if err != nil {
		return nil, err
	}
	return c.product.ParseCollections(response.Body)
}

func (c *Connector) authorizedDispatch(
	ctx context.Context,
	credential core.CredentialRecord,
	bucket string,
	request core.TransportRequest,
) (core.TransportResponse, error) {
	header, err := authorizationHeader(credential)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if request.Headers == nil {
		request.Headers = map[string]string{}
	}
	request.Headers["Authorization"] = header
	if _, ok := request.Headers["Accept"]; !ok {
		request.Headers["Accept"] = "application/json"
	}

	key := core.RateLimitKey{
		ConnectorID: credential.ConnectorID,
		TenantID:    credential.TenantID,
		Bucket:      bucket,
	}
	return c.dispatch(ctx, key, request)
}

// dispatch runs one REST call through the throttle policy and maps non-2xx
// statuses onto the error taxonomy.
func (c *Connector) dispatch(ctx context.Context, key core.RateLimitKey, request core.TransportRequest) (core.TransportResponse, error) {
	if request.Timeout <= 0 && c.cfg.RequestTimeout > 0 {
		request.Timeout = c.cfg.RequestTimeout
	}

	if c.policy != nil {
		if err := c.policy.BeforeCall(ctx, key); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return core.TransportResponse{}, throttled.ToConnectorError()
			}
			return core.TransportResponse{}, err
		}
	}

	response, err := c.transport.Do(ctx, request)
	if err != nil {
		return core.TransportResponse{}, err
	}

	if c.policy != nil {
		if err := c.policy.AfterCall(ctx, key, core.VendorResponseMeta{
			StatusCode: response.StatusCode,
			Headers:    response.Headers,
		}); err != nil {
			return core.TransportResponse{}, err
		}
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return core.TransportResponse{}, statusError(c.product.Descriptor().ID, response)
	}
	return response, nil
}

func (c *Connector) resolveBaseURL(credential core.CredentialRecord) (string, error) {
	baseURL := strings.TrimSpace(credential.BaseURL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(c.cfg.BaseURL)
	}
	if baseURL == "" {
		return "", vendorError(
			"atlassian: vendor base url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"connector_id": c.product.Descriptor().ID},
		)
	}
	return strings.TrimRight(baseURL, "/"), nil
}

func authorizationHeader(credential core.CredentialRecord) (string, error) {
	switch credential.Mode {
	case core.AuthModeOAuth:
		if strings.TrimSpace(credential.Token.AccessToken) == "" {
			return "", vendorError(
				"atlassian: credential has no access token, reauthorization required",
				goerrors.CategoryAuth,
				http.StatusUnauthorized,
				nil,
			)
		}
		return "Bearer " + credential.Token.AccessToken, nil
	case core.AuthModePAT:
		return basicAuthHeader(credential.Token.Identity, credential.Token.AccessToken), nil
	default:
		return "", vendorError(
			fmt.Sprintf("atlassian: auth mode %q is invalid", string(credential.Mode)),
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			nil,
		)
	}
}

func basicAuthHeader(identity, token string) string {
	raw := strings.TrimSpace(identity) + ":" + strings.TrimSpace(token)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func (c *Connector) now() time.Time {
	if c != nil && c.nowFn != nil {
		return c.nowFn().UTC()
	}
	return time.Now().UTC()
}

func (c *Connector) httpClient() HTTPDoer {
	if c != nil && c.cfg.HTTPClient != nil {
		return c.cfg.HTTPClient
	}
	return http.DefaultClient
}

var (
	_ core.Connector        = (*Connector)(nil)
	_ core.CollectionLister = (*Connector)(nil)
)
