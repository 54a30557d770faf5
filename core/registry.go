package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ConnectorRegistry is the write-once-at-startup connector catalogue.
// Registration is guarded, reads are lock-cheap and sorted by id.
type ConnectorRegistry struct {
	mu         sync.RWMutex
	connectors map[string]Connector
}

func NewConnectorRegistry() *ConnectorRegistry {
	return &ConnectorRegistry{connectors: make(map[string]Connector)}
}

func (r *ConnectorRegistry) Register(connector Connector) error {
	if connector == nil {
		return fmt.Errorf("core: connector is nil")
	}
	descriptor := connector.Descriptor()
	if err := descriptor.Validate(); err != nil {
		return err
	}
	id := strings.TrimSpace(descriptor.ID)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.connectors[id]; exists {
		return fmt.Errorf("core: connector already registered: %s", id)
	}
	r.connectors[id] = connector
	return nil
}

func (r *ConnectorRegistry) Get(connectorID string) (Connector, bool) {
	id := strings.TrimSpace(connectorID)
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	connector, ok := r.connectors[id]
	r.mu.RUnlock()
	return connector, ok
}

func (r *ConnectorRegistry) List() []Connector {
	r.mu.RLock()
	keys := make([]string, 0, len(r.connectors))
	for id := range r.connectors {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	connectors := make([]Connector, 0, len(keys))
	for _, id := range keys {
		connectors = append(connectors, r.connectors[id])
	}
	r.mu.RUnlock()
	return connectors
}

var _ Registry = (*ConnectorRegistry)(nil)
