// Package sqlstore persists connector credentials in SQL through bun. One
// row exists per (tenant, connector); token material is sealed by the codec
// and secret provider before it touches a column.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-connectors/core"
)

type CredentialStore struct {
	db     *bun.DB
	repo   repository.Repository[*credentialRecord]
	sealer core.TokenSealer
	nowFn  func() time.Time
}

func (s *CredentialStore) Put(ctx context.Context, record core.CredentialRecord) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	record.TenantID = core.NormalizeTenant(record.TenantID)
	record.ConnectorID = strings.TrimSpace(record.ConnectorID)
	record.BaseURL = strings.TrimSpace(record.BaseURL)
	if err := record.Validate(); err != nil {
		return core.CredentialRecord{}, err
	}

	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	token := record.Token
	payload, err := s.sealer.Seal(ctx, &record)
	if err != nil {
		return core.CredentialRecord{}, err
	}

	var stored core.CredentialRecord
	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &credentialRecord{}
		found := true
		if lookupErr := tx.NewSelect().
			Model(existing).
			Where("tenant_id = ?", record.TenantID).
			Where("connector_id = ?", record.ConnectorID).
			Limit(1).
			Scan(ctx); lookupErr != nil {
			if !errors.Is(lookupErr, sql.ErrNoRows) {
				return fmt.Errorf("sqlstore: lookup existing credential: %w", lookupErr)
			}
			found = false
		}

		if found {
			record.CreatedAt = existing.CreatedAt.UTC()
			if _, deleteErr := tx.NewDelete().
				Model((*credentialRecord)(nil)).
				Where("tenant_id = ?", record.TenantID).
				Where("connector_id = ?", record.ConnectorID).
				Exec(ctx); deleteErr != nil {
				return deleteErr
			}
		}

		row := newCredentialRecord(record, payload, token.TokenType)
		if found && strings.TrimSpace(existing.ID) != "" {
			row.ID = existing.ID
		} else {
			row.ID = uuid.New().String()
		}
		inserted, createErr := s.repo.CreateTx(ctx, tx, row)
		if createErr != nil {
			return createErr
		}
		stored = inserted.toMeta()
		return nil
	})
	if err != nil {
		return core.CredentialRecord{}, err
	}

	stored.Token = token
	return stored, nil
}

func (s *CredentialStore) Get(ctx context.Context, tenantID, connectorID string) (core.CredentialRecord, error) {
	if s == nil || s.repo == nil {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = core.NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: connector id is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectBy("connector_id", "=", connectorID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.CredentialRecord{}, err
	}
	if len(records) == 0 {
		return core.CredentialRecord{}, fmt.Errorf("sqlstore: credential not found for %s/%s", tenantID, connectorID)
	}

	row := records[0]
	material, err := s.sealer.Open(ctx, row.EncryptedPayload)
	if err != nil {
		return core.CredentialRecord{}, err
	}

	record := row.toMeta()
	record.Token = material
	return record, nil
}

func (s *CredentialStore) Delete(ctx context.Context, tenantID, connectorID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = core.NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return fmt.Errorf("sqlstore: connector id is required")
	}

	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("tenant_id = ?", tenantID).
		Where("connector_id = ?", connectorID).
		Exec(ctx)
	return err
}

func (s *CredentialStore) List(ctx context.Context, tenantID string) ([]core.Connection, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = core.NormalizeTenant(tenantID)

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.OrderBy("connector_id ASC"),
	)
	if err != nil {
		return nil, err
	}

	connections := make([]core.Connection, 0, len(records))
	for _, row := range records {
		connections = append(connections, row.toMeta().Connection())
	}
	return connections, nil
}

func (s *CredentialStore) now() time.Time {
	if s != nil && s.nowFn != nil {
		return s.nowFn().UTC()
	}
	return time.Now().UTC()
}
