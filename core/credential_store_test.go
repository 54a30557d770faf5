package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type reversingSecretProvider struct {
	failDecrypt bool
}

func (p *reversingSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[len(plaintext)-1-i] = b
	}
	return out, nil
}

func (p *reversingSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p.failDecrypt {
		return nil, fmt.Errorf("decrypt payload: cipher: message authentication failed")
	}
	return p.Encrypt(ctx, ciphertext)
}

func (p *reversingSecretProvider) Metadata() (string, int) {
	return "test-key", 1
}

type plaintextSecretProvider struct{}

func (plaintextSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return append([]byte(nil), plaintext...), nil
}

func (plaintextSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return append([]byte(nil), ciphertext...), nil
}

func (plaintextSecretProvider) Encrypts() bool { return false }

func testRecord(tenant, connector string) CredentialRecord {
	return CredentialRecord{
		TenantID:    tenant,
		ConnectorID: connector,
		Mode:        AuthModeOAuth,
		Token: TokenMaterial{
			TokenType:    "bearer",
			AccessToken:  "access-" + connector,
			RefreshToken: "refresh-" + connector,
		},
		Scopes: []string{"read:jira-work", "offline_access"},
	}
}

func TestMemoryCredentialStoreRoundTrip(t *testing.T) {
	store := NewMemoryCredentialStore()

	stored, err := store.Put(context.Background(), testRecord("tenant-a", "jira"))
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set")
	}

	got, err := store.Get(context.Background(), "tenant-a", "jira")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Token.AccessToken != "access-jira" || got.Token.RefreshToken != "refresh-jira" {
		t.Fatalf("token material did not round trip: %+v", got.Token)
	}
	if got.Encrypted {
		t.Fatalf("expected record without secret provider to be unencrypted")
	}
}

func TestMemoryCredentialStoreLastWriteWins(t *testing.T) {
	store := NewMemoryCredentialStore()

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	updated := testRecord("tenant-a", "jira")
	updated.Token.AccessToken = "access-rotated"
	if _, err := store.Put(context.Background(), updated); err != nil {
		t.Fatalf("update credential: %v", err)
	}

	got, err := store.Get(context.Background(), "tenant-a", "jira")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Token.AccessToken != "access-rotated" {
		t.Fatalf("expected rotated token, got %q", got.Token.AccessToken)
	}
}

func TestMemoryCredentialStoreEncryptsWithProvider(t *testing.T) {
	provider := &reversingSecretProvider{}
	store := NewMemoryCredentialStore(WithStoreSecretProvider(provider))

	stored, err := store.Put(context.Background(), testRecord("tenant-a", "jira"))
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if !stored.Encrypted {
		t.Fatalf("expected record to be marked encrypted")
	}
	if stored.EncryptionKeyID != "test-key" {
		t.Fatalf("expected key id test-key, got %q", stored.EncryptionKeyID)
	}

	got, err := store.Get(context.Background(), "tenant-a", "jira")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if got.Token.AccessToken != "access-jira" {
		t.Fatalf("expected decrypted token, got %q", got.Token.AccessToken)
	}
}

func TestMemoryCredentialStorePlaintextProviderFlag(t *testing.T) {
	store := NewMemoryCredentialStore(WithStoreSecretProvider(plaintextSecretProvider{}))

	stored, err := store.Put(context.Background(), testRecord("tenant-a", "jira"))
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if stored.Encrypted {
		t.Fatalf("expected plaintext provider to leave record unencrypted")
	}
}

func TestMemoryCredentialStoreDecryptionFailureIsDistinct(t *testing.T) {
	provider := &reversingSecretProvider{}
	store := NewMemoryCredentialStore(WithStoreSecretProvider(provider))

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	provider.failDecrypt = true

	_, err := store.Get(context.Background(), "tenant-a", "jira")
	if err == nil {
		t.Fatalf("expected decryption failure")
	}
	if !strings.Contains(err.Error(), "decrypt") {
		t.Fatalf("expected decrypt error, got: %v", err)
	}

	_, missingErr := store.Get(context.Background(), "tenant-a", "confluence")
	if missingErr == nil {
		t.Fatalf("expected not found error")
	}
	if !strings.Contains(missingErr.Error(), "not found") {
		t.Fatalf("expected not found error, got: %v", missingErr)
	}
	if strings.Contains(missingErr.Error(), "decrypt") {
		t.Fatalf("not found should be distinct from decryption failure")
	}
}

func TestMemoryCredentialStoreTenantIsolation(t *testing.T) {
	store := NewMemoryCredentialStore()

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if _, err := store.Get(context.Background(), "tenant-b", "jira"); err == nil {
		t.Fatalf("expected tenant-b to have no credential")
	}

	connections, err := store.List(context.Background(), "tenant-b")
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(connections) != 0 {
		t.Fatalf("expected empty list for tenant-b, got %d", len(connections))
	}
}

func TestMemoryCredentialStoreListOmitsSecrets(t *testing.T) {
	store := NewMemoryCredentialStore()

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	confluence := testRecord("tenant-a", "confluence")
	confluence.Mode = AuthModePAT
	confluence.Token.Identity = "user@example.com"
	if _, err := store.Put(context.Background(), confluence); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	connections, err := store.List(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(connections))
	}
	if connections[0].ConnectorID != "confluence" || connections[1].ConnectorID != "jira" {
		t.Fatalf("expected sorted connector ids, got %+v", connections)
	}
}

func TestMemoryCredentialStoreDeleteIdempotent(t *testing.T) {
	store := NewMemoryCredentialStore()

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if err := store.Delete(context.Background(), "tenant-a", "jira"); err != nil {
		t.Fatalf("delete credential: %v", err)
	}
	if err := store.Delete(context.Background(), "tenant-a", "jira"); err != nil {
		t.Fatalf("expected repeat delete to succeed: %v", err)
	}
	if _, err := store.Get(context.Background(), "tenant-a", "jira"); err == nil {
		t.Fatalf("expected credential to be gone")
	}
}

func TestMemoryCredentialStoreConcurrentPuts(t *testing.T) {
	store := NewMemoryCredentialStore()

	const writers = 16
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			record := testRecord("tenant-a", "jira")
			record.Token.AccessToken = fmt.Sprintf("access-%d", i)
			if _, err := store.Put(context.Background(), record); err != nil {
				t.Errorf("put credential: %v", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Get(context.Background(), "tenant-a", "jira")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if !strings.HasPrefix(got.Token.AccessToken, "access-") {
		t.Fatalf("expected an intact record, got %q", got.Token.AccessToken)
	}

	connections, err := store.List(context.Background(), "tenant-a")
	if err != nil {
		t.Fatalf("list connections: %v", err)
	}
	if len(connections) != 1 {
		t.Fatalf("expected exactly one record after concurrent puts, got %d", len(connections))
	}
}

func TestMemoryCredentialStoreDefaultTenant(t *testing.T) {
	store := NewMemoryCredentialStore()

	record := testRecord("", "jira")
	stored, err := store.Put(context.Background(), record)
	if err != nil {
		t.Fatalf("put credential: %v", err)
	}
	if stored.TenantID != DefaultTenant {
		t.Fatalf("expected default tenant, got %q", stored.TenantID)
	}
	if _, err := store.Get(context.Background(), DefaultTenant, "jira"); err != nil {
		t.Fatalf("expected credential under default tenant: %v", err)
	}
}

func TestMemoryCredentialStorePreservesCreatedAt(t *testing.T) {
	store := NewMemoryCredentialStore()
	base := time.Now().UTC().Add(-time.Hour)
	store.nowFn = func() time.Time { return base }

	if _, err := store.Put(context.Background(), testRecord("tenant-a", "jira")); err != nil {
		t.Fatalf("put credential: %v", err)
	}

	store.nowFn = func() time.Time { return base.Add(time.Hour) }
	stored, err := store.Put(context.Background(), testRecord("tenant-a", "jira"))
	if err != nil {
		t.Fatalf("update credential: %v", err)
	}
	got, err := store.Get(context.Background(), "tenant-a", "jira")
	if err != nil {
		t.Fatalf("get credential: %v", err)
	}
	if !got.CreatedAt.Equal(base) {
		t.Fatalf("expected created_at preserved, got %v", got.CreatedAt)
	}
	if !stored.UpdatedAt.After(stored.CreatedAt) {
		t.Fatalf("expected updated_at after created_at")
	}
}
