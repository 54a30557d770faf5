package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatLegacyToken = "legacy_token"
	CredentialPayloadFormatJSONV1      = "token_material_json"
	CredentialPayloadVersionV1         = 1
)

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonTokenPayload struct {
	TokenType    string     `json:"token_type,omitempty"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Identity     string     `json:"identity,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

func (JSONCredentialCodec) Encode(material TokenMaterial) ([]byte, error) {
	payload := jsonTokenPayload{
		TokenType:    strings.TrimSpace(material.TokenType),
		AccessToken:  strings.TrimSpace(material.AccessToken),
		RefreshToken: strings.TrimSpace(material.RefreshToken),
		Identity:     strings.TrimSpace(material.Identity),
		ExpiresAt:    cloneTimePointer(material.ExpiresAt),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (TokenMaterial, error) {
	if len(payload) == 0 {
		return TokenMaterial{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonTokenPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return TokenMaterial{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	return TokenMaterial{
		TokenType:    strings.TrimSpace(decoded.TokenType),
		AccessToken:  strings.TrimSpace(decoded.AccessToken),
		RefreshToken: strings.TrimSpace(decoded.RefreshToken),
		Identity:     strings.TrimSpace(decoded.Identity),
		ExpiresAt:    cloneTimePointer(decoded.ExpiresAt),
	}, nil
}

// LegacyTokenCredentialCodec stores the bare access token with no envelope.
// Kept for payloads written before the JSON format existed.
type LegacyTokenCredentialCodec struct{}

func (LegacyTokenCredentialCodec) Format() string {
	return CredentialPayloadFormatLegacyToken
}

func (LegacyTokenCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

func (LegacyTokenCredentialCodec) Encode(material TokenMaterial) ([]byte, error) {
	token := strings.TrimSpace(material.AccessToken)
	if token == "" {
		token = strings.TrimSpace(material.RefreshToken)
	}
	if token == "" {
		return nil, fmt.Errorf("core: legacy credential payload requires a token")
	}
	return []byte(token), nil
}

func (LegacyTokenCredentialCodec) Decode(payload []byte) (TokenMaterial, error) {
	token := strings.TrimSpace(string(payload))
	if token == "" {
		return TokenMaterial{}, fmt.Errorf("core: legacy credential payload is empty")
	}
	return TokenMaterial{AccessToken: token}, nil
}

var (
	_ CredentialCodec = JSONCredentialCodec{}
	_ CredentialCodec = LegacyTokenCredentialCodec{}
)
