package core

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"sync"
	"time"
)

const credentialShardCount = 16

type storedCredential struct {
	meta    CredentialRecord
	payload []byte
}

type credentialShard struct {
	mu      sync.RWMutex
	entries map[string]storedCredential
}

// MemoryCredentialStore keeps sealed credentials in process memory, sharded
// by (tenant, connector) key so writers in one shard never block readers in
// another. Token material is run through the codec and, when a secret
// provider is configured, the provider before it is held.
type MemoryCredentialStore struct {
	shards [credentialShardCount]*credentialShard
	codec  CredentialCodec
	secret SecretProvider
	nowFn  func() time.Time
}

type MemoryCredentialStoreOption func(*MemoryCredentialStore)

func WithStoreSecretProvider(provider SecretProvider) MemoryCredentialStoreOption {
	return func(s *MemoryCredentialStore) {
		s.secret = provider
	}
}

func WithStoreCodec(codec CredentialCodec) MemoryCredentialStoreOption {
	return func(s *MemoryCredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func NewMemoryCredentialStore(opts ...MemoryCredentialStoreOption) *MemoryCredentialStore {
	store := &MemoryCredentialStore{
		codec: JSONCredentialCodec{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for i := range store.shards {
		store.shards[i] = &credentialShard{entries: map[string]storedCredential{}}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(store)
	}
	return store
}

func (s *MemoryCredentialStore) Put(ctx context.Context, record CredentialRecord) (CredentialRecord, error) {
	if s == nil {
		return CredentialRecord{}, fmt.Errorf("core: credential store is not configured")
	}
	record.TenantID = NormalizeTenant(record.TenantID)
	record.ConnectorID = strings.TrimSpace(record.ConnectorID)
	record.BaseURL = strings.TrimSpace(record.BaseURL)
	record.Scopes = sortedScopes(record.Scopes)
	if err := record.Validate(); err != nil {
		return CredentialRecord{}, err
	}

	now := s.nowFn()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	payload, err := s.sealToken(ctx, &record)
	if err != nil {
		return CredentialRecord{}, err
	}

	meta := record.Clone()
	meta.Token = TokenMaterial{ExpiresAt: cloneTimePointer(record.Token.ExpiresAt)}

	key := credentialKey(record.TenantID, record.ConnectorID)
	shard := s.shard(key)
	shard.mu.Lock()
	if existing, ok := shard.entries[key]; ok {
		meta.CreatedAt = existing.meta.CreatedAt
	}
	shard.entries[key] = storedCredential{meta: meta, payload: payload}
	shard.mu.Unlock()

	stored := meta.Clone()
	stored.Token = record.Token
	return stored, nil
}

func (s *MemoryCredentialStore) Get(ctx context.Context, tenantID, connectorID string) (CredentialRecord, error) {
	if s == nil {
		return CredentialRecord{}, fmt.Errorf("core: credential store is not configured")
	}
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return CredentialRecord{}, fmt.Errorf("core: connector id is required")
	}

	key := credentialKey(tenantID, connectorID)
	shard := s.shard(key)
	shard.mu.RLock()
	entry, ok := shard.entries[key]
	if ok {
		entry.meta = entry.meta.Clone()
		entry.payload = append([]byte(nil), entry.payload...)
	}
	shard.mu.RUnlock()

	if !ok {
		return CredentialRecord{}, fmt.Errorf("core: credential not found for %s/%s", tenantID, connectorID)
	}

	material, err := s.openToken(ctx, entry.payload)
	if err != nil {
		return CredentialRecord{}, err
	}

	record := entry.meta
	record.Token = material
	return record, nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, tenantID, connectorID string) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return fmt.Errorf("core: connector id is required")
	}

	key := credentialKey(tenantID, connectorID)
	shard := s.shard(key)
	shard.mu.Lock()
	delete(shard.entries, key)
	shard.mu.Unlock()
	return nil
}

func (s *MemoryCredentialStore) List(_ context.Context, tenantID string) ([]Connection, error) {
	if s == nil {
		return nil, fmt.Errorf("core: credential store is not configured")
	}
	tenantID = NormalizeTenant(tenantID)

	connections := []Connection{}
	for _, shard := range s.shards {
		shard.mu.RLock()
		for _, entry := range shard.entries {
			if entry.meta.TenantID != tenantID {
				continue
			}
			connections = append(connections, entry.meta.Connection())
		}
		shard.mu.RUnlock()
	}
	sort.Slice(connections, func(i, j int) bool {
		return connections[i].ConnectorID < connections[j].ConnectorID
	})
	return connections, nil
}

func (s *MemoryCredentialStore) sealToken(ctx context.Context, record *CredentialRecord) ([]byte, error) {
	return TokenSealer{Codec: s.codec, Secret: s.secret}.Seal(ctx, record)
}

func (s *MemoryCredentialStore) openToken(ctx context.Context, payload []byte) (TokenMaterial, error) {
	return TokenSealer{Codec: s.codec, Secret: s.secret}.Open(ctx, payload)
}

func (s *MemoryCredentialStore) shard(key string) *credentialShard {
	digest := fnv.New32a()
	_, _ = digest.Write([]byte(key))
	return s.shards[digest.Sum32()%credentialShardCount]
}

func credentialKey(tenantID, connectorID string) string {
	return tenantID + "\x00" + connectorID
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)
