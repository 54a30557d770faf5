package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Connector is the capability-gated surface every vendor integration
// implements. Operations outside the declared capabilities must not be
// invoked; the service gates them before dispatch.
type Connector interface {
	Descriptor() Descriptor
	BuildAuthorizationURL(ctx context.Context, tenantID, state, redirectURI string, scopes []string) (string, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (TokenMaterial, []string, error)
	ValidatePAT(ctx context.Context, creds PATCredentials) (TokenMaterial, error)
	Search(ctx context.Context, credential CredentialRecord, req SearchRequest) (SearchPage, error)
	Create(ctx context.Context, credential CredentialRecord, req CreateRequest) (CreatedItem, error)
}

// CollectionLister is implemented by connectors that can enumerate the
// vendor groupings items are created under (projects, spaces).
type CollectionLister interface {
	ListCollections(ctx context.Context, credential CredentialRecord, resource string) ([]Collection, error)
}

type Registry interface {
	Register(connector Connector) error
	Get(connectorID string) (Connector, bool)
	List() []Connector
}

// CredentialStore persists at most one credential per (tenant, connector).
// Implementations must keep writes atomic with respect to concurrent
// readers and must never return token material from List.
type CredentialStore interface {
	Put(ctx context.Context, record CredentialRecord) (CredentialRecord, error)
	Get(ctx context.Context, tenantID, connectorID string) (CredentialRecord, error)
	Delete(ctx context.Context, tenantID, connectorID string) error
	List(ctx context.Context, tenantID string) ([]Connection, error)
}

// OAuthStateManager tracks pending authorization flows. Issued states are
// single-use and tenant-bound; expired states behave as if never issued.
type OAuthStateManager interface {
	Issue(ctx context.Context, tenantID, connectorID string) (string, error)
	ValidateAndConsume(ctx context.Context, state, tenantID string) (string, error)
	PurgeExpired(ctx context.Context) int
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// EncryptionReporter is implemented by secret providers that can say whether
// their output is actually encrypted. Providers that do not implement it are
// assumed to encrypt.
type EncryptionReporter interface {
	Encrypts() bool
}

type KeyMetadataProvider interface {
	Metadata() (keyID string, version int)
}

type CredentialCodec interface {
	Format() string
	Version() int
	Encode(material TokenMaterial) ([]byte, error)
	Decode(payload []byte) (TokenMaterial, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

// StoreProvider lets durable backends hand the service their store set in
// one call.
type StoreProvider interface {
	CredentialStore() CredentialStore
}

// RateLimitKey identifies the throttle bucket a vendor call draws from.
// Buckets are scoped per connector and tenant so one noisy tenant cannot
// starve the rest.
type RateLimitKey struct {
	ConnectorID string
	TenantID    string
	Bucket      string
}

// VendorResponseMeta carries the throttle-relevant portion of a vendor
// response.
type VendorResponseMeta struct {
	StatusCode int
	Headers    map[string]string
	RetryAfter *time.Duration
	Metadata   map[string]any
}

// RateLimitPolicy is consulted around every outbound vendor call. BeforeCall
// rejects calls into a bucket that is known to be throttled; AfterCall feeds
// the vendor's response headers back into the bucket state.
type RateLimitPolicy interface {
	BeforeCall(ctx context.Context, key RateLimitKey) error
	AfterCall(ctx context.Context, key RateLimitKey, res VendorResponseMeta) error
}
