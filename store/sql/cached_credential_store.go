package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-connectors/core"
)

const (
	credentialCacheKeyPrefix  = "go-connectors::credential::v1"
	connectionsCacheKeyPrefix = "go-connectors::connections::v1"
)

// CachedCredentialStore keeps hot credential reads out of the database.
// Writes go through to the base store and drop both the record entry and
// the tenant's connection listing.
type CachedCredentialStore struct {
	base  core.CredentialStore
	cache repositorycache.CacheService
}

func NewCachedCredentialStore(
	base core.CredentialStore,
	cacheService repositorycache.CacheService,
) (*CachedCredentialStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base credential store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: credential cache service is required")
	}
	return &CachedCredentialStore{base: base, cache: cacheService}, nil
}

// CredentialCacheKey is the deterministic key contract for credential reads:
// go-connectors::credential::v1::<tenant>::<connector> with each segment
// URL-path escaped.
func CredentialCacheKey(tenantID, connectorID string) (string, error) {
	tenantID = core.NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return "", fmt.Errorf("sqlstore: connector id is required")
	}
	return strings.Join([]string{
		credentialCacheKeyPrefix,
		url.PathEscape(tenantID),
		url.PathEscape(connectorID),
	}, "::"), nil
}

func ConnectionsCacheKey(tenantID string) string {
	return connectionsCacheKeyPrefix + "::" + url.PathEscape(core.NormalizeTenant(tenantID))
}

func (s *CachedCredentialStore) Put(ctx context.Context, record core.CredentialRecord) (core.CredentialRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	stored, err := s.base.Put(ctx, record)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	if err := s.invalidate(ctx, stored.TenantID, stored.ConnectorID); err != nil {
		return core.CredentialRecord{}, err
	}
	return stored, nil
}

func (s *CachedCredentialStore) Get(ctx context.Context, tenantID, connectorID string) (core.CredentialRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	cacheKey, err := CredentialCacheKey(tenantID, connectorID)
	if err != nil {
		return core.CredentialRecord{}, err
	}

	record, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.CredentialRecord, error) {
		fetched, fetchErr := s.base.Get(ctx, tenantID, connectorID)
		if fetchErr != nil {
			return core.CredentialRecord{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}
	return record.Clone(), nil
}

func (s *CachedCredentialStore) Delete(ctx context.Context, tenantID, connectorID string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached credential store is not configured")
	}
	if err := s.base.Delete(ctx, tenantID, connectorID); err != nil {
		return err
	}
	return s.invalidate(ctx, tenantID, connectorID)
}

func (s *CachedCredentialStore) List(ctx context.Context, tenantID string) ([]core.Connection, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached credential store is not configured")
	}

	connections, err := repositorycache.GetOrFetch(ctx, s.cache, ConnectionsCacheKey(tenantID), func(ctx context.Context) ([]core.Connection, error) {
		return s.base.List(ctx, tenantID)
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Connection(nil), connections...), nil
}

func (s *CachedCredentialStore) invalidate(ctx context.Context, tenantID, connectorID string) error {
	cacheKey, err := CredentialCacheKey(tenantID, connectorID)
	if err != nil {
		return err
	}
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		return err
	}
	return s.cache.Delete(ctx, ConnectionsCacheKey(tenantID))
}

var _ core.CredentialStore = (*CachedCredentialStore)(nil)
