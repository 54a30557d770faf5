package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ConnectMessage]          = (*ConnectCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ValidatePATMessage]      = (*ValidatePATCommand)(nil)
	_ gocmd.Commander[CreateItemMessage]       = (*CreateItemCommand)(nil)
	_ gocmd.Commander[DisconnectMessage]       = (*DisconnectCommand)(nil)
	_ gocmd.Commander[RunMaintenanceMessage]   = (*RunMaintenanceCommand)(nil)
)
