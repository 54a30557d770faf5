package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-connectors/core"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:connector_credentials,alias:cc"`

	ID               string     `bun:"id,pk"`
	TenantID         string     `bun:"tenant_id,notnull"`
	ConnectorID      string     `bun:"connector_id,notnull"`
	Mode             string     `bun:"mode,notnull"`
	EncryptedPayload []byte     `bun:"encrypted_payload,notnull"`
	PayloadFormat    string     `bun:"payload_format,notnull"`
	PayloadVersion   int        `bun:"payload_version,notnull"`
	TokenType        string     `bun:"token_type"`
	BaseURL          string     `bun:"base_url"`
	Scopes           []string   `bun:"scopes,type:jsonb,notnull"`
	Encrypted        bool       `bun:"encrypted,notnull"`
	EncryptionKeyID  string     `bun:"encryption_key_id"`
	ExpiresAt        *time.Time `bun:"expires_at,nullzero"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// toMeta rebuilds the non-secret record portion. Token material stays inside
// the sealed payload; only the expiry is mirrored onto the column for list
// projections.
func (r *credentialRecord) toMeta() core.CredentialRecord {
	if r == nil {
		return core.CredentialRecord{}
	}
	meta := core.CredentialRecord{
		TenantID:        r.TenantID,
		ConnectorID:     r.ConnectorID,
		Mode:            core.AuthMode(r.Mode),
		BaseURL:         r.BaseURL,
		Scopes:          append([]string(nil), r.Scopes...),
		Encrypted:       r.Encrypted,
		EncryptionKeyID: r.EncryptionKeyID,
		PayloadFormat:   r.PayloadFormat,
		PayloadVersion:  r.PayloadVersion,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		expiresAt := r.ExpiresAt.UTC()
		meta.Token.ExpiresAt = &expiresAt
	}
	return meta
}

func newCredentialRecord(meta core.CredentialRecord, payload []byte, tokenType string) *credentialRecord {
	record := &credentialRecord{
		TenantID:         meta.TenantID,
		ConnectorID:      meta.ConnectorID,
		Mode:             string(meta.Mode),
		EncryptedPayload: payload,
		PayloadFormat:    meta.PayloadFormat,
		PayloadVersion:   meta.PayloadVersion,
		TokenType:        tokenType,
		BaseURL:          meta.BaseURL,
		Scopes:           append([]string{}, meta.Scopes...),
		Encrypted:        meta.Encrypted,
		EncryptionKeyID:  meta.EncryptionKeyID,
		CreatedAt:        meta.CreatedAt,
		UpdatedAt:        meta.UpdatedAt,
	}
	if meta.Token.ExpiresAt != nil {
		expiresAt := meta.Token.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	return record
}
