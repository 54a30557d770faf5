package command

import (
	"strings"

	"github.com/goliatone/go-connectors/core"
)

const (
	TypeConnect          = "connectors.command.connect"
	TypeCompleteCallback = "connectors.command.callback.complete"
	TypeValidatePAT      = "connectors.command.pat.validate"
	TypeCreateItem       = "connectors.command.item.create"
	TypeDisconnect       = "connectors.command.disconnect"
	TypeRunMaintenance   = "connectors.command.maintenance.run"
)

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return commandValidationError("code", "authorization code is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "state is required")
	}
	return nil
}

type ValidatePATMessage struct {
	TenantID    string
	ConnectorID string
	Credentials core.PATCredentials
}

func (ValidatePATMessage) Type() string { return TypeValidatePAT }

func (m ValidatePATMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	if err := m.Credentials.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid pat credentials")
	}
	return nil
}

type CreateItemMessage struct {
	Request core.CreateRequest
}

func (CreateItemMessage) Type() string { return TypeCreateItem }

func (m CreateItemMessage) Validate() error {
	if strings.TrimSpace(m.Request.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	if len(m.Request.Payload) == 0 {
		return commandValidationError("payload", "payload is required")
	}
	return nil
}

type DisconnectMessage struct {
	TenantID    string
	ConnectorID string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.ConnectorID) == "" {
		return commandValidationError("connector_id", "connector id is required")
	}
	return nil
}

type RunMaintenanceMessage struct{}

func (RunMaintenanceMessage) Type() string { return TypeRunMaintenance }

func (RunMaintenanceMessage) Validate() error { return nil }
