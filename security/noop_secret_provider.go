package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-connectors/core"
)

// NoopSecretProvider passes payloads through unchanged. It reports
// Encrypts() false so stored records stay auditable as plaintext when no
// application key is configured.
type NoopSecretProvider struct{}

func (NoopSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("security: plaintext is required")
	}
	return append([]byte(nil), plaintext...), nil
}

func (NoopSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("security: ciphertext is required")
	}
	return append([]byte(nil), ciphertext...), nil
}

func (NoopSecretProvider) Encrypts() bool { return false }

var (
	_ core.SecretProvider     = NoopSecretProvider{}
	_ core.EncryptionReporter = NoopSecretProvider{}
)
