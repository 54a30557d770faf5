package connectors

import (
	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/security"
)

type Config = core.Config

type OAuthStateConfig = core.OAuthStateConfig
type RetryConfig = core.RetryConfig
type VendorConfig = core.VendorConfig
type EncryptionConfig = core.EncryptionConfig

type Option = core.Option

type Service = core.Service

type Connector = core.Connector
type CollectionLister = core.CollectionLister
type Descriptor = core.Descriptor
type Capability = core.Capability
type Connection = core.Connection
type CredentialRecord = core.CredentialRecord
type TokenMaterial = core.TokenMaterial
type PATCredentials = core.PATCredentials

type ConnectRequest = core.ConnectRequest
type ConnectResult = core.ConnectResult
type CallbackRequest = core.CallbackRequest
type SearchRequest = core.SearchRequest
type SearchPage = core.SearchPage
type CreateRequest = core.CreateRequest
type CreatedItem = core.CreatedItem
type Collection = core.Collection
type NormalizedItem = core.NormalizedItem
type MaintenanceResult = core.MaintenanceResult

var (
	WithLogger                = core.WithLogger
	WithLoggerProvider        = core.WithLoggerProvider
	WithMetricsRecorder       = core.WithMetricsRecorder
	WithErrorMapper           = core.WithErrorMapper
	WithConfigProvider        = core.WithConfigProvider
	WithOptionsResolver       = core.WithOptionsResolver
	WithRegistry              = core.WithRegistry
	WithCredentialStore       = core.WithCredentialStore
	WithOAuthStateManager     = core.WithOAuthStateManager
	WithSecretProvider        = core.WithSecretProvider
	WithSecretProviderFactory = core.WithSecretProviderFactory
	WithCredentialCodec       = core.WithCredentialCodec
	WithBackoffScheduler      = core.WithBackoffScheduler
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewService builds a service with the app-key secret provider factory
// attached, so a configured encryption.key encrypts stored credentials
// without explicit wiring. An explicit WithSecretProvider still wins.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	withDefaults := append([]Option{WithSecretProviderFactory(appKeySecretProviderFactory)}, opts...)
	return core.NewService(cfg, withDefaults...)
}

func appKeySecretProviderFactory(cfg core.EncryptionConfig) (core.SecretProvider, error) {
	return security.NewAppKeySecretProviderFromString(cfg.Key, security.WithKeyID(cfg.KeyID))
}

// Setup builds a service and registers the given connectors. A duplicate
// connector id is a conflict and aborts setup; callers should treat the
// error as fatal at startup.
func Setup(cfg Config, connectors []Connector, opts ...Option) (*Service, error) {
	service, err := NewService(cfg, opts...)
	if err != nil {
		return nil, err
	}
	for _, connector := range connectors {
		if err := service.RegisterConnector(connector); err != nil {
			return nil, err
		}
	}
	return service, nil
}
