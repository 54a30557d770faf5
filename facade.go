package connectors

import (
	"fmt"

	connectorscommand "github.com/goliatone/go-connectors/command"
	connectorsquery "github.com/goliatone/go-connectors/query"
)

// CommandQueryService is the full boundary surface the facade exposes.
// *core.Service satisfies it.
type CommandQueryService interface {
	connectorscommand.MutatingService
	connectorsquery.DescriptorReader
	connectorsquery.ConnectionReader
	connectorsquery.SearchReader
	connectorsquery.CollectionReader
}

type Commands struct {
	Connect          *connectorscommand.ConnectCommand
	CompleteCallback *connectorscommand.CompleteCallbackCommand
	ValidatePAT      *connectorscommand.ValidatePATCommand
	CreateItem       *connectorscommand.CreateItemCommand
	Disconnect       *connectorscommand.DisconnectCommand
	RunMaintenance   *connectorscommand.RunMaintenanceCommand
}

type Queries struct {
	ListDescriptors *connectorsquery.ListDescriptorsQuery
	ListConnections *connectorsquery.ListConnectionsQuery
	Search          *connectorsquery.SearchQuery
	ListCollections *connectorsquery.ListCollectionsQuery
}

// Facade bundles the command and query handlers built over one service.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("connectors: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Connect:          connectorscommand.NewConnectCommand(service),
		CompleteCallback: connectorscommand.NewCompleteCallbackCommand(service),
		ValidatePAT:      connectorscommand.NewValidatePATCommand(service),
		CreateItem:       connectorscommand.NewCreateItemCommand(service),
		Disconnect:       connectorscommand.NewDisconnectCommand(service),
		RunMaintenance:   connectorscommand.NewRunMaintenanceCommand(service),
	}
	facade.queries = Queries{
		ListDescriptors: connectorsquery.NewListDescriptorsQuery(service),
		ListConnections: connectorsquery.NewListConnectionsQuery(service),
		Search:          connectorsquery.NewSearchQuery(service),
		ListCollections: connectorsquery.NewListCollectionsQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
