// Package gocommand wires the connector command and query handlers into the
// go-command registry and dispatcher.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	connectorscommand "github.com/goliatone/go-connectors/command"
	connectorsquery "github.com/goliatone/go-connectors/query"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
)

// Service is the slice of the connector service the CQRS boundary consumes.
type Service interface {
	connectorscommand.MutatingService
	connectorsquery.DescriptorReader
	connectorsquery.ConnectionReader
	connectorsquery.SearchReader
	connectorsquery.CollectionReader
}

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so mutations can also run as queued jobs.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

// SubscriptionGroup bundles the dispatcher subscriptions created for one
// service so callers can tear the whole set down at once.
type SubscriptionGroup struct {
	subscriptions []commanddispatcher.Subscription
}

func (g *SubscriptionGroup) Unsubscribe() {
	if g == nil {
		return
	}
	for _, subscription := range g.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	g.subscriptions = nil
}

// SubscribeService registers every connector command and query against the
// dispatcher and the registry.
func SubscribeService(adapter *RegistryAdapter, service Service, runnerOpts ...runner.Option) (*SubscriptionGroup, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if service == nil {
		return nil, fmt.Errorf("gocommand: service is required")
	}

	group := &SubscriptionGroup{}
	register := func(handler any, subscription commanddispatcher.Subscription) error {
		if err := adapter.RegisterCommand(handler); err != nil {
			subscription.Unsubscribe()
			group.Unsubscribe()
			return err
		}
		group.subscriptions = append(group.subscriptions, subscription)
		return nil
	}

	connect := connectorscommand.NewConnectCommand(service)
	if err := register(connect, SubscribeCommand(connect, runnerOpts...)); err != nil {
		return nil, err
	}
	callback := connectorscommand.NewCompleteCallbackCommand(service)
	if err := register(callback, SubscribeCommand(callback, runnerOpts...)); err != nil {
		return nil, err
	}
	validatePAT := connectorscommand.NewValidatePATCommand(service)
	if err := register(validatePAT, SubscribeCommand(validatePAT, runnerOpts...)); err != nil {
		return nil, err
	}
	create := connectorscommand.NewCreateItemCommand(service)
	if err := register(create, SubscribeCommand(create, runnerOpts...)); err != nil {
		return nil, err
	}
	disconnect := connectorscommand.NewDisconnectCommand(service)
	if err := register(disconnect, SubscribeCommand(disconnect, runnerOpts...)); err != nil {
		return nil, err
	}
	maintenance := connectorscommand.NewRunMaintenanceCommand(service)
	if err := register(maintenance, SubscribeCommand(maintenance, runnerOpts...)); err != nil {
		return nil, err
	}

	descriptors := connectorsquery.NewListDescriptorsQuery(service)
	if err := register(descriptors, SubscribeQuery(descriptors, runnerOpts...)); err != nil {
		return nil, err
	}
	connections := connectorsquery.NewListConnectionsQuery(service)
	if err := register(connections, SubscribeQuery(connections, runnerOpts...)); err != nil {
		return nil, err
	}
	search := connectorsquery.NewSearchQuery(service)
	if err := register(search, SubscribeQuery(search, runnerOpts...)); err != nil {
		return nil, err
	}
	collections := connectorsquery.NewListCollectionsQuery(service)
	if err := register(collections, SubscribeQuery(collections, runnerOpts...)); err != nil {
		return nil, err
	}

	return group, nil
}
