package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultOAuthStateTTL        = 10 * time.Minute
	defaultOAuthStateMaxEntries = 10_000
)

type oauthStateEntry struct {
	TenantID    string
	ConnectorID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// MemoryOAuthStateManager keeps pending authorization states in process
// memory. States are single-use: ValidateAndConsume removes the entry on
// every lookup, valid or not, so a replayed state never succeeds. Entries
// past their TTL are treated as absent; Issue prunes lazily and evicts the
// oldest entries once the bound is hit, so a missed sweep costs memory, not
// correctness.
type MemoryOAuthStateManager struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]oauthStateEntry
	nowFn      func() time.Time
}

func NewMemoryOAuthStateManager(ttl time.Duration, maxEntries int) *MemoryOAuthStateManager {
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultOAuthStateMaxEntries
	}
	return &MemoryOAuthStateManager{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]oauthStateEntry{},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryOAuthStateManager) Issue(_ context.Context, tenantID, connectorID string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("core: oauth state manager is not configured")
	}
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return "", fmt.Errorf("core: connector id is required")
	}

	state, err := generateOAuthState()
	if err != nil {
		return "", err
	}

	now := m.nowFn()
	m.mu.Lock()
	m.pruneLocked(now)
	m.entries[state] = oauthStateEntry{
		TenantID:    tenantID,
		ConnectorID: connectorID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(m.ttl),
	}
	m.mu.Unlock()

	return state, nil
}

func (m *MemoryOAuthStateManager) ValidateAndConsume(_ context.Context, state, tenantID string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("core: oauth state manager is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return "", fmt.Errorf("core: oauth state is required")
	}
	tenantID = NormalizeTenant(tenantID)

	m.mu.Lock()
	entry, ok := m.entries[state]
	if ok {
		delete(m.entries, state)
	}
	m.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("core: oauth state not found")
	}
	if m.nowFn().After(entry.ExpiresAt) {
		return "", fmt.Errorf("core: oauth state expired")
	}
	if entry.TenantID != tenantID {
		return "", fmt.Errorf("core: oauth state tenant mismatch")
	}

	return entry.ConnectorID, nil
}

func (m *MemoryOAuthStateManager) PurgeExpired(_ context.Context) int {
	if m == nil {
		return 0
	}
	now := m.nowFn()
	m.mu.Lock()
	purged := m.pruneLocked(now)
	m.mu.Unlock()
	return purged
}

func (m *MemoryOAuthStateManager) pruneLocked(now time.Time) int {
	purged := 0
	for state, entry := range m.entries {
		if now.After(entry.ExpiresAt) {
			delete(m.entries, state)
			purged++
		}
	}
	for len(m.entries) >= m.maxEntries {
		oldestState := ""
		oldestAt := time.Time{}
		for state, entry := range m.entries {
			if oldestState == "" || entry.CreatedAt.Before(oldestAt) {
				oldestState = state
				oldestAt = entry.CreatedAt
			}
		}
		delete(m.entries, oldestState)
		purged++
	}
	return purged
}

func generateOAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ OAuthStateManager = (*MemoryOAuthStateManager)(nil)
