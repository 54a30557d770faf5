package query

import (
	"strings"

	"github.com/goliatone/go-connectors/core"
)

const (
	TypeListDescriptors = "connectors.query.descriptors.list"
	TypeListConnections = "connectors.query.connections.list"
	TypeSearch          = "connectors.query.search"
	TypeListCollections = "connectors.query.collections.list"
)

type ListDescriptorsMessage struct{}

func (ListDescriptorsMessage) Type() string { return TypeListDescriptors }

func (ListDescriptorsMessage) Validate() error { return nil }

type ListConnectionsMessage struct {
	TenantID string
}

func (ListConnectionsMessage) Type() string { return TypeListConnections }

func (ListConnectionsMessage) Validate() error { return nil }

type SearchMessage struct {
	Request core.SearchRequest
}

func (SearchMessage) Type() string { return TypeSearch }

func (m SearchMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return queryValidationError("connector_id", "connector id is required")
	}
	if strings.TrimSpace(m.Request.Query) == "" {
		return queryValidationError("query", "query text is required")
	}
	if m.Request.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Request.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	return nil
}

type ListCollectionsMessage struct {
	TenantID    string
	ConnectorID string
	Resource    string
}

func (ListCollectionsMessage) Type() string { return TypeListCollections }

func (m ListCollectionsMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return queryValidationError("connector_id", "connector id is required")
	}
	return nil
}
