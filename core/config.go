package core

import (
	"fmt"
	"strings"
	"time"
)

type OAuthStateConfig struct {
	TTL        time.Duration `koanf:"ttl" mapstructure:"ttl"`
	MaxEntries int           `koanf:"max_entries" mapstructure:"max_entries"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `koanf:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `koanf:"max_backoff" mapstructure:"max_backoff"`
}

type VendorConfig struct {
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type EncryptionConfig struct {
	Key   string `koanf:"key" mapstructure:"key"`
	KeyID string `koanf:"key_id" mapstructure:"key_id"`
}

type Config struct {
	ServiceName   string           `koanf:"service_name" mapstructure:"service_name"`
	DefaultTenant string           `koanf:"default_tenant" mapstructure:"default_tenant"`
	OAuthState    OAuthStateConfig `koanf:"oauth_state" mapstructure:"oauth_state"`
	Retry         RetryConfig      `koanf:"retry" mapstructure:"retry"`
	Vendor        VendorConfig     `koanf:"vendor" mapstructure:"vendor"`
	Encryption    EncryptionConfig `koanf:"encryption" mapstructure:"encryption"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:   "connectors",
		DefaultTenant: DefaultTenant,
		OAuthState: OAuthStateConfig{
			TTL:        defaultOAuthStateTTL,
			MaxEntries: defaultOAuthStateMaxEntries,
		},
		Retry: RetryConfig{
			MaxAttempts:    defaultRetryMaxAttempts,
			InitialBackoff: defaultRetryInitialBackoff,
			MaxBackoff:     defaultRetryMaxBackoff,
		},
		Vendor: VendorConfig{
			Timeout: 10 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.OAuthState.TTL < 0 {
		return fmt.Errorf("core: oauth_state.ttl must not be negative")
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("core: retry.max_attempts must not be negative")
	}
	if c.Retry.InitialBackoff < 0 || c.Retry.MaxBackoff < 0 {
		return fmt.Errorf("core: retry backoff must not be negative")
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.InitialBackoff > c.Retry.MaxBackoff {
		return fmt.Errorf("core: retry.initial_backoff exceeds retry.max_backoff")
	}
	if c.Vendor.Timeout < 0 {
		return fmt.Errorf("core: vendor.timeout must not be negative")
	}
	return nil
}
