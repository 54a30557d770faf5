package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultTenant is the namespace used when a caller supplies no tenant.
const DefaultTenant = "public"

type AuthMode string

const (
	AuthModeOAuth AuthMode = "oauth"
	AuthModePAT   AuthMode = "personal_access_token"
)

func (m AuthMode) Valid() bool {
	switch m {
	case AuthModeOAuth, AuthModePAT:
		return true
	}
	return false
}

type Capability string

const (
	CapabilityOAuth  Capability = "oauth"
	CapabilityPAT    Capability = "personal_access_token"
	CapabilitySearch Capability = "search"
	CapabilityCreate Capability = "create"
)

// NormalizeTenant trims the tenant identifier and falls back to
// DefaultTenant when empty. Tenants are never pre-registered.
func NormalizeTenant(tenant string) string {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return DefaultTenant
	}
	return tenant
}

// Descriptor is the immutable identity a connector registers under.
type Descriptor struct {
	ID             string
	DisplayName    string
	Capabilities   []Capability
	RequiredScopes []string
}

func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("core: connector id is required")
	}
	if strings.TrimSpace(d.DisplayName) == "" {
		return fmt.Errorf("core: connector display name is required")
	}
	if len(d.Capabilities) == 0 {
		return fmt.Errorf("core: connector %q declares no capabilities", d.ID)
	}
	return nil
}

func (d Descriptor) Supports(capability Capability) bool {
	for _, candidate := range d.Capabilities {
		if candidate == capability {
			return true
		}
	}
	return false
}

func (d Descriptor) Clone() Descriptor {
	cloned := d
	cloned.Capabilities = append([]Capability(nil), d.Capabilities...)
	cloned.RequiredScopes = append([]string(nil), d.RequiredScopes...)
	return cloned
}

// TokenMaterial is the secret portion of a credential. It is the only part
// that passes through the codec and secret provider, and it never appears in
// logs or list output.
type TokenMaterial struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Identity     string
	ExpiresAt    *time.Time
}

func (t TokenMaterial) Empty() bool {
	return strings.TrimSpace(t.AccessToken) == "" && strings.TrimSpace(t.RefreshToken) == ""
}

// Expired reports whether the material carries an expiry in the past.
// Material without an expiry never expires.
func (t TokenMaterial) Expired(now time.Time) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return now.UTC().After(t.ExpiresAt.UTC())
}

// CredentialRecord is the unit the credential store persists, keyed by
// (tenant, connector). At most one record exists per key; writes are
// last-write-wins.
type CredentialRecord struct {
	TenantID        string
	ConnectorID     string
	Mode            AuthMode
	Token           TokenMaterial
	BaseURL         string
	Scopes          []string
	Encrypted       bool
	EncryptionKeyID string
	PayloadFormat   string
	PayloadVersion  int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (r CredentialRecord) Validate() error {
	if strings.TrimSpace(r.TenantID) == "" {
		return fmt.Errorf("core: credential tenant is required")
	}
	if strings.TrimSpace(r.ConnectorID) == "" {
		return fmt.Errorf("core: credential connector id is required")
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("core: credential auth mode %q is invalid", string(r.Mode))
	}
	if r.Token.Empty() {
		return fmt.Errorf("core: credential token material is required")
	}
	return nil
}

func (r CredentialRecord) Clone() CredentialRecord {
	cloned := r
	cloned.Scopes = append([]string(nil), r.Scopes...)
	cloned.Token.ExpiresAt = cloneTimePointer(r.Token.ExpiresAt)
	return cloned
}

// Connection is the non-secret projection of a stored credential used by
// list operations.
type Connection struct {
	TenantID    string
	ConnectorID string
	Mode        AuthMode
	Scopes      []string
	Encrypted   bool
	ExpiresAt   *time.Time
	LinkedAt    time.Time
}

// Connection builds the list projection, dropping all token material.
func (r CredentialRecord) Connection() Connection {
	return Connection{
		TenantID:    r.TenantID,
		ConnectorID: r.ConnectorID,
		Mode:        r.Mode,
		Scopes:      append([]string(nil), r.Scopes...),
		Encrypted:   r.Encrypted,
		ExpiresAt:   cloneTimePointer(r.Token.ExpiresAt),
		LinkedAt:    r.CreatedAt,
	}
}

// NormalizedItem is the vendor-neutral shape search and create results are
// reduced to.
type NormalizedItem struct {
	ID       string
	Title    string
	URL      string
	Kind     string
	Subtitle string
}

type SearchPage struct {
	Items   []NormalizedItem
	Page    int
	PerPage int
	Total   int
}

type CreatedItem struct {
	Item NormalizedItem
}

// Collection is a vendor grouping items live under, such as a Jira project
// or a Confluence space.
type Collection struct {
	Key  string
	Name string
}

// PATCredentials carries a personal access token for validation. BaseURL is
// the vendor site the token belongs to, Identity the account it
// authenticates as.
type PATCredentials struct {
	BaseURL  string
	Identity string
	Token    string
}

func (c PATCredentials) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("core: pat base url is required")
	}
	if strings.TrimSpace(c.Identity) == "" {
		return fmt.Errorf("core: pat identity is required")
	}
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("core: pat token is required")
	}
	return nil
}

type ConnectRequest struct {
	TenantID    string
	ConnectorID string
	RedirectURI string
	Scopes      []string
}

type ConnectResult struct {
	AuthorizationURL string
	State            string
}

type CallbackRequest struct {
	TenantID    string
	ConnectorID string
	Code        string
	State       string
}

type SearchRequest struct {
	TenantID    string
	ConnectorID string
	Query       string
	Resource    string
	Page        int
	PerPage     int
}

func (r SearchRequest) normalized() SearchRequest {
	out := r
	out.TenantID = NormalizeTenant(r.TenantID)
	out.ConnectorID = strings.TrimSpace(r.ConnectorID)
	out.Query = strings.TrimSpace(r.Query)
	out.Resource = strings.TrimSpace(r.Resource)
	if out.Page < 1 {
		out.Page = 1
	}
	if out.PerPage < 1 {
		out.PerPage = 25
	}
	return out
}

type CreateRequest struct {
	TenantID       string
	ConnectorID    string
	Resource       string
	Payload        map[string]any
	IdempotencyKey string
}

func sortedScopes(scopes []string) []string {
	cleaned := make([]string, 0, len(scopes))
	seen := map[string]struct{}{}
	for _, scope := range scopes {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		if _, dup := seen[scope]; dup {
			continue
		}
		seen[scope] = struct{}{}
		cleaned = append(cleaned, scope)
	}
	sort.Strings(cleaned)
	return cleaned
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
