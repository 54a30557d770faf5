package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-connectors/core"
)

type MutatingService interface {
	Connect(ctx context.Context, req core.ConnectRequest) (core.ConnectResult, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.Connection, error)
	ValidatePAT(ctx context.Context, tenantID, connectorID string, creds core.PATCredentials) (core.Connection, error)
	Create(ctx context.Context, req core.CreateRequest) (core.CreatedItem, error)
	Disconnect(ctx context.Context, tenantID, connectorID string) error
	RunMaintenance(ctx context.Context) (core.MaintenanceResult, error)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ValidatePATCommand struct {
	service MutatingService
}

func NewValidatePATCommand(service MutatingService) *ValidatePATCommand {
	return &ValidatePATCommand{service: service}
}

func (c *ValidatePATCommand) Execute(ctx context.Context, msg ValidatePATMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: pat validation service is required")
	}
	out, err := c.service.ValidatePAT(ctx, msg.TenantID, msg.ConnectorID, msg.Credentials)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CreateItemCommand struct {
	service MutatingService
}

func NewCreateItemCommand(service MutatingService) *CreateItemCommand {
	return &CreateItemCommand{service: service}
}

func (c *CreateItemCommand) Execute(ctx context.Context, msg CreateItemMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: create service is required")
	}
	out, err := c.service.Create(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.TenantID, msg.ConnectorID)
}

type RunMaintenanceCommand struct {
	service MutatingService
}

func NewRunMaintenanceCommand(service MutatingService) *RunMaintenanceCommand {
	return &RunMaintenanceCommand{service: service}
}

func (c *RunMaintenanceCommand) Execute(ctx context.Context, msg RunMaintenanceMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: maintenance service is required")
	}
	out, err := c.service.RunMaintenance(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
