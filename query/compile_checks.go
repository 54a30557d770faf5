package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-connectors/core"
)

var (
	_ gocmd.Querier[ListDescriptorsMessage, []core.Descriptor] = (*ListDescriptorsQuery)(nil)
	_ gocmd.Querier[ListConnectionsMessage, []core.Connection] = (*ListConnectionsQuery)(nil)
	_ gocmd.Querier[SearchMessage, core.SearchPage]            = (*SearchQuery)(nil)
	_ gocmd.Querier[ListCollectionsMessage, []core.Collection] = (*ListCollectionsQuery)(nil)
)
