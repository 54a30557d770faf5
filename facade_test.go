package connectors

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-connectors/command"
	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/query"
)

type stubConnector struct {
	id string
}

func (c stubConnector) Descriptor() core.Descriptor {
	return core.Descriptor{
		ID:          c.id,
		DisplayName: strings.ToUpper(c.id[:1]) + c.id[1:],
		Capabilities: []core.Capability{
			core.CapabilityOAuth,
			core.CapabilityPAT,
			core.CapabilitySearch,
			core.CapabilityCreate,
		},
	}
}

func (c stubConnector) BuildAuthorizationURL(_ context.Context, _, state, redirectURI string, _ []string) (string, error) {
	return fmt.Sprintf("https://vendor.example/%s/authorize?state=%s&redirect_uri=%s", c.id, state, redirectURI), nil
}

func (c stubConnector) ExchangeCode(_ context.Context, code, _ string) (core.TokenMaterial, []string, error) {
	if code == "" {
		return core.TokenMaterial{}, nil, fmt.Errorf("%s: authorization code is required", c.id)
	}
	return core.TokenMaterial{TokenType: "bearer", AccessToken: "token-" + code}, []string{"read"}, nil
}

func (c stubConnector) ValidatePAT(_ context.Context, creds core.PATCredentials) (core.TokenMaterial, error) {
	return core.TokenMaterial{TokenType: "basic", AccessToken: creds.Token, Identity: creds.Identity}, nil
}

func (c stubConnector) Search(_ context.Context, _ core.CredentialRecord, req core.SearchRequest) (core.SearchPage, error) {
	return core.SearchPage{
		Items:   []core.NormalizedItem{{ID: "1", Title: req.Query, Kind: "issue"}},
		Page:    req.Page,
		PerPage: req.PerPage,
		Total:   1,
	}, nil
}

func (c stubConnector) Create(_ context.Context, _ core.CredentialRecord, _ core.CreateRequest) (core.CreatedItem, error) {
	return core.CreatedItem{Item: core.NormalizedItem{ID: "1", Title: "created", Kind: "issue"}}, nil
}

func TestSetupRegistersConnectors(t *testing.T) {
	service, err := Setup(DefaultConfig(), []Connector{
		stubConnector{id: "jira"},
		stubConnector{id: "confluence"},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	descriptors := service.Descriptors(context.Background())
	if len(descriptors) != 2 {
		t.Fatalf("expected two descriptors, got %d", len(descriptors))
	}
}

func TestSetupRejectsDuplicateConnector(t *testing.T) {
	_, err := Setup(DefaultConfig(), []Connector{
		stubConnector{id: "jira"},
		stubConnector{id: "jira"},
	})
	if err == nil {
		t.Fatalf("expected duplicate registration conflict")
	}
	if !strings.Contains(err.Error(), "jira") {
		t.Fatalf("expected conflicting connector id in error, got %v", err)
	}
}

func TestNewFacadeRequiresService(t *testing.T) {
	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestFacadeEndToEndOAuthFlow(t *testing.T) {
	ctx := context.Background()
	service, err := Setup(DefaultConfig(), []Connector{stubConnector{id: "jira"}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	facade, err := NewFacade(service)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	connectCollector := gocmd.NewResult[core.ConnectResult]()
	connectCtx := gocmd.ContextWithResult(ctx, connectCollector)
	if err := facade.Commands().Connect.Execute(connectCtx, command.ConnectMessage{
		Request: core.ConnectRequest{
			TenantID:    "acme",
			ConnectorID: "jira",
			RedirectURI: "https://app.example/callback",
		},
	}); err != nil {
		t.Fatalf("connect command: %v", err)
	}
	connectResult, ok := connectCollector.Load()
	if !ok || connectResult.State == "" {
		t.Fatalf("expected connect result with state, got %#v", connectResult)
	}

	callbackCollector := gocmd.NewResult[core.Connection]()
	callbackCtx := gocmd.ContextWithResult(ctx, callbackCollector)
	if err := facade.Commands().CompleteCallback.Execute(callbackCtx, command.CompleteCallbackMessage{
		Request: core.CallbackRequest{
			TenantID:    "acme",
			ConnectorID: "jira",
			Code:        "auth-code",
			State:       connectResult.State,
		},
	}); err != nil {
		t.Fatalf("callback command: %v", err)
	}
	connection, ok := callbackCollector.Load()
	if !ok || connection.ConnectorID != "jira" || connection.Mode != core.AuthModeOAuth {
		t.Fatalf("unexpected connection: %#v", connection)
	}

	page, err := facade.Queries().Search.Query(ctx, query.SearchMessage{
		Request: core.SearchRequest{
			TenantID:    "acme",
			ConnectorID: "jira",
			Query:       "demo",
		},
	})
	if err != nil {
		t.Fatalf("search query: %v", err)
	}
	if page.Total != 1 || len(page.Items) != 1 || page.Items[0].Title != "demo" {
		t.Fatalf("unexpected search page: %#v", page)
	}

	connections, err := facade.Queries().ListConnections.Query(ctx, query.ListConnectionsMessage{TenantID: "acme"})
	if err != nil {
		t.Fatalf("list connections query: %v", err)
	}
	if len(connections) != 1 || connections[0].ConnectorID != "jira" {
		t.Fatalf("unexpected connections: %#v", connections)
	}

	if err := facade.Commands().Disconnect.Execute(ctx, command.DisconnectMessage{
		TenantID:    "acme",
		ConnectorID: "jira",
	}); err != nil {
		t.Fatalf("disconnect command: %v", err)
	}
	connections, err = facade.Queries().ListConnections.Query(ctx, query.ListConnectionsMessage{TenantID: "acme"})
	if err != nil {
		t.Fatalf("list after disconnect: %v", err)
	}
	if len(connections) != 0 {
		t.Fatalf("expected no connections after disconnect, got %#v", connections)
	}
}

func TestSetupEncryptsWithConfiguredKey(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Encryption = EncryptionConfig{Key: "configured-app-key", KeyID: "primary"}
	service, err := Setup(cfg, []Connector{stubConnector{id: "jira"}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	connection, err := service.ValidatePAT(ctx, "acme", "jira", PATCredentials{
		BaseURL:  "https://example.atlassian.net",
		Identity: "user@example.com",
		Token:    "pat-token",
	})
	if err != nil {
		t.Fatalf("validate pat: %v", err)
	}
	if !connection.Encrypted {
		t.Fatalf("expected encrypted credential with configured key")
	}

	plainService, err := Setup(DefaultConfig(), []Connector{stubConnector{id: "jira"}})
	if err != nil {
		t.Fatalf("setup without key: %v", err)
	}
	plainConnection, err := plainService.ValidatePAT(ctx, "acme", "jira", PATCredentials{
		BaseURL:  "https://example.atlassian.net",
		Identity: "user@example.com",
		Token:    "pat-token",
	})
	if err != nil {
		t.Fatalf("validate pat without key: %v", err)
	}
	if plainConnection.Encrypted {
		t.Fatalf("expected plaintext credential without configured key")
	}
}

func TestConnectorFactoriesBuildDescriptors(t *testing.T) {
	jiraConnector, err := JiraConnector(AtlassianConfig{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("jira connector: %v", err)
	}
	if jiraConnector.Descriptor().ID != "jira" {
		t.Fatalf("unexpected jira descriptor %#v", jiraConnector.Descriptor())
	}

	confluenceConnector, err := ConfluenceConnector(AtlassianConfig{ClientID: "client", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("confluence connector: %v", err)
	}
	if confluenceConnector.Descriptor().ID != "confluence" {
		t.Fatalf("unexpected confluence descriptor %#v", confluenceConnector.Descriptor())
	}

	if _, err := Setup(DefaultConfig(), []Connector{jiraConnector, confluenceConnector}); err != nil {
		t.Fatalf("setup with vendor connectors: %v", err)
	}
}
