package core

import (
	"context"
	"testing"
)

type stubConnector struct {
	descriptor Descriptor

	buildAuthURL func(ctx context.Context, tenantID, state, redirectURI string, scopes []string) (string, error)
	exchangeCode func(ctx context.Context, code, redirectURI string) (TokenMaterial, []string, error)
	validatePAT  func(ctx context.Context, creds PATCredentials) (TokenMaterial, error)
	search       func(ctx context.Context, credential CredentialRecord, req SearchRequest) (SearchPage, error)
	create       func(ctx context.Context, credential CredentialRecord, req CreateRequest) (CreatedItem, error)
}

func (c *stubConnector) Descriptor() Descriptor {
	return c.descriptor
}

func (c *stubConnector) BuildAuthorizationURL(ctx context.Context, tenantID, state, redirectURI string, scopes []string) (string, error) {
	if c.buildAuthURL != nil {
		return c.buildAuthURL(ctx, tenantID, state, redirectURI, scopes)
	}
	return "https://vendor.example/authorize?state=" + state, nil
}

func (c *stubConnector) ExchangeCode(ctx context.Context, code, redirectURI string) (TokenMaterial, []string, error) {
	if c.exchangeCode != nil {
		return c.exchangeCode(ctx, code, redirectURI)
	}
	return TokenMaterial{TokenType: "bearer", AccessToken: "access-" + code}, nil, nil
}

func (c *stubConnector) ValidatePAT(ctx context.Context, creds PATCredentials) (TokenMaterial, error) {
	if c.validatePAT != nil {
		return c.validatePAT(ctx, creds)
	}
	return TokenMaterial{TokenType: "basic", AccessToken: creds.Token, Identity: creds.Identity}, nil
}

func (c *stubConnector) Search(ctx context.Context, credential CredentialRecord, req SearchRequest) (SearchPage, error) {
	if c.search != nil {
		return c.search(ctx, credential, req)
	}
	return SearchPage{Page: req.Page, PerPage: req.PerPage}, nil
}

func (c *stubConnector) Create(ctx context.Context, credential CredentialRecord, req CreateRequest) (CreatedItem, error) {
	if c.create != nil {
		return c.create(ctx, credential, req)
	}
	return CreatedItem{Item: NormalizedItem{ID: "created-1"}}, nil
}

func newStubConnector(id string, capabilities ...Capability) *stubConnector {
	if len(capabilities) == 0 {
		capabilities = []Capability{CapabilityOAuth, CapabilityPAT, CapabilitySearch, CapabilityCreate}
	}
	return &stubConnector{
		descriptor: Descriptor{
			ID:           id,
			DisplayName:  id,
			Capabilities: capabilities,
		},
	}
}

func TestConnectorRegistryRegisterAndGet(t *testing.T) {
	registry := NewConnectorRegistry()

	if err := registry.Register(newStubConnector("jira")); err != nil {
		t.Fatalf("register connector: %v", err)
	}
	if _, ok := registry.Get("jira"); !ok {
		t.Fatalf("expected jira to be registered")
	}
	if _, ok := registry.Get("confluence"); ok {
		t.Fatalf("expected confluence to be absent")
	}
}

func TestConnectorRegistryRejectsDuplicates(t *testing.T) {
	registry := NewConnectorRegistry()

	if err := registry.Register(newStubConnector("jira")); err != nil {
		t.Fatalf("register connector: %v", err)
	}
	if err := registry.Register(newStubConnector("jira")); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestConnectorRegistryRejectsInvalidDescriptor(t *testing.T) {
	registry := NewConnectorRegistry()

	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil connector to be rejected")
	}
	if err := registry.Register(&stubConnector{descriptor: Descriptor{ID: "x"}}); err == nil {
		t.Fatalf("expected descriptor without display name to be rejected")
	}
}

func TestConnectorRegistryListSorted(t *testing.T) {
	registry := NewConnectorRegistry()

	for _, id := range []string{"jira", "confluence", "asana"} {
		if err := registry.Register(newStubConnector(id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	connectors := registry.List()
	if len(connectors) != 3 {
		t.Fatalf("expected 3 connectors, got %d", len(connectors))
	}
	expected := []string{"asana", "confluence", "jira"}
	for i, connector := range connectors {
		if connector.Descriptor().ID != expected[i] {
			t.Fatalf("expected %s at %d, got %s", expected[i], i, connector.Descriptor().ID)
		}
	}
}
