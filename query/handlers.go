package query

import (
	"context"

	"github.com/goliatone/go-connectors/core"
)

type DescriptorReader interface {
	Descriptors(ctx context.Context) []core.Descriptor
}

type ConnectionReader interface {
	Connections(ctx context.Context, tenantID string) ([]core.Connection, error)
}

type SearchReader interface {
	Search(ctx context.Context, req core.SearchRequest) (core.SearchPage, error)
}

type CollectionReader interface {
	Collections(ctx context.Context, tenantID, connectorID, resource string) ([]core.Collection, error)
}

type ListDescriptorsQuery struct {
	reader DescriptorReader
}

func NewListDescriptorsQuery(reader DescriptorReader) *ListDescriptorsQuery {
	return &ListDescriptorsQuery{reader: reader}
}

func (q *ListDescriptorsQuery) Query(ctx context.Context, msg ListDescriptorsMessage) ([]core.Descriptor, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: descriptor reader is required")
	}
	return q.reader.Descriptors(ctx), nil
}

type ListConnectionsQuery struct {
	reader ConnectionReader
}

func NewListConnectionsQuery(reader ConnectionReader) *ListConnectionsQuery {
	return &ListConnectionsQuery{reader: reader}
}

func (q *ListConnectionsQuery) Query(ctx context.Context, msg ListConnectionsMessage) ([]core.Connection, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: connection reader is required")
	}
	return q.reader.Connections(ctx, msg.TenantID)
}

type SearchQuery struct {
	reader SearchReader
}

func NewSearchQuery(reader SearchReader) *SearchQuery {
	return &SearchQuery{reader: reader}
}

func (q *SearchQuery) Query(ctx context.Context, msg SearchMessage) (core.SearchPage, error) {
	if q == nil || q.reader == nil {
		return core.SearchPage{}, queryDependencyError("query: search reader is required")
	}
	return q.reader.Search(ctx, msg.Request)
}

type ListCollectionsQuery struct {
	reader CollectionReader
}

func NewListCollectionsQuery(reader CollectionReader) *ListCollectionsQuery {
	return &ListCollectionsQuery{reader: reader}
}

func (q *ListCollectionsQuery) Query(ctx context.Context, msg ListCollectionsMessage) ([]core.Collection, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: collection reader is required")
	}
	return q.reader.Collections(ctx, msg.TenantID, msg.ConnectorID, msg.Resource)
}
