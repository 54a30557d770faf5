package core

import (
	"context"
	"fmt"
)

// TokenSealer runs token material through the codec and, when configured,
// the secret provider. Stores share it so sealed payloads stay portable
// between backends. Seal stamps the payload format, encryption flag, and
// key id onto the record.
type TokenSealer struct {
	Codec  CredentialCodec
	Secret SecretProvider
}

func (ts TokenSealer) Seal(ctx context.Context, record *CredentialRecord) ([]byte, error) {
	codec := ts.Codec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	payload, err := codec.Encode(record.Token)
	if err != nil {
		return nil, err
	}
	record.PayloadFormat = codec.Format()
	record.PayloadVersion = codec.Version()
	record.Encrypted = false
	record.EncryptionKeyID = ""

	if ts.Secret == nil {
		return payload, nil
	}
	sealed, err := ts.Secret.Encrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("core: encrypt credential payload: %w", err)
	}
	record.Encrypted = providerEncrypts(ts.Secret)
	if record.Encrypted {
		if metadata, ok := ts.Secret.(KeyMetadataProvider); ok {
			keyID, _ := metadata.Metadata()
			record.EncryptionKeyID = keyID
		}
	}
	return sealed, nil
}

func (ts TokenSealer) Open(ctx context.Context, payload []byte) (TokenMaterial, error) {
	if ts.Secret != nil {
		opened, err := ts.Secret.Decrypt(ctx, payload)
		if err != nil {
			return TokenMaterial{}, fmt.Errorf("core: decrypt credential payload: %w", err)
		}
		payload = opened
	}
	codec := ts.Codec
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	return codec.Decode(payload)
}

func providerEncrypts(provider SecretProvider) bool {
	if provider == nil {
		return false
	}
	if reporter, ok := provider.(EncryptionReporter); ok {
		return reporter.Encrypts()
	}
	return true
}
