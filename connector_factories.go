package connectors

import (
	"github.com/goliatone/go-connectors/core"
	"github.com/goliatone/go-connectors/vendors/atlassian"
	"github.com/goliatone/go-connectors/vendors/confluence"
	"github.com/goliatone/go-connectors/vendors/jira"
)

// AtlassianConfig configures the shared Atlassian connector base.
type AtlassianConfig = atlassian.Config

func JiraConnector(cfg AtlassianConfig) (core.Connector, error) {
	return jira.New(cfg)
}

func ConfluenceConnector(cfg AtlassianConfig) (core.Connector, error) {
	return confluence.New(cfg)
}
