package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Service coordinates connector registration, credential lifecycle, OAuth
// callback state, and retried vendor dispatch. It returns typed errors only;
// boundary envelopes live outside core.
type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	registry        Registry
	credentialStore CredentialStore
	stateManager    OAuthStateManager
	retry           RetryRunner
	nowFn           func() time.Time
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewConnectorRegistry()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, fmt.Errorf("core: load config: %w", err)
	}
	resolved, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, fmt.Errorf("core: resolve config: %w", err)
	}

	secretProvider := builder.secretProvider
	if secretProvider == nil && builder.secretFactory != nil && strings.TrimSpace(resolved.Encryption.Key) != "" {
		built, factoryErr := builder.secretFactory(resolved.Encryption)
		if factoryErr != nil {
			return nil, fmt.Errorf("core: build secret provider: %w", factoryErr)
		}
		secretProvider = built
	}

	store := builder.credentialStore
	if store == nil {
		storeOpts := []MemoryCredentialStoreOption{WithStoreCodec(builder.credentialCodec)}
		if secretProvider != nil {
			storeOpts = append(storeOpts, WithStoreSecretProvider(secretProvider))
		}
		store = NewMemoryCredentialStore(storeOpts...)
	}

	stateManager := builder.stateManager
	if stateManager == nil {
		stateManager = NewMemoryOAuthStateManager(resolved.OAuthState.TTL, resolved.OAuthState.MaxEntries)
	}

	backoff := builder.backoff
	if backoff == nil {
		backoff = ExponentialBackoffScheduler{
			Initial: resolved.Retry.InitialBackoff,
			Max:     resolved.Retry.MaxBackoff,
		}
	}

	provider, logger := glog.Resolve(resolved.ServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)

	service := &Service{
		config:          resolved,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		registry:        builder.registry,
		credentialStore: store,
		stateManager:    stateManager,
		retry: RetryRunner{
			MaxAttempts: resolved.Retry.MaxAttempts,
			Scheduler:   backoff,
		},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	return service, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Registry() Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// RegisterConnector adds a connector to the registry. Duplicate ids are a
// conflict and should abort startup.
func (s *Service) RegisterConnector(connector Connector) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if err := s.registry.Register(connector); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *Service) Descriptors(ctx context.Context) []Descriptor {
	if s == nil || s.registry == nil {
		return nil
	}
	connectors := s.registry.List()
	descriptors := make([]Descriptor, 0, len(connectors))
	for _, connector := range connectors {
		descriptors = append(descriptors, connector.Descriptor().Clone())
	}
	return descriptors
}

func (s *Service) Connections(ctx context.Context, tenantID string) ([]Connection, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID = NormalizeTenant(tenantID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "list_connections", err, map[string]any{
			"tenant_id": tenantID,
		})
	}()

	connections, listErr := s.credentialStore.List(ctx, tenantID)
	if listErr != nil {
		err = s.mapError(listErr)
		return nil, err
	}
	return connections, nil
}

// Connect starts an OAuth flow: gates the capability, issues a single-use
// state bound to the tenant, and builds the vendor authorization URL.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (ConnectResult, error) {
	if s == nil {
		return ConnectResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID := NormalizeTenant(req.TenantID)
	connectorID := strings.TrimSpace(req.ConnectorID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "connect", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	connector, gateErr := s.connectorFor(connectorID, CapabilityOAuth)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return ConnectResult{}, err
	}

	state, stateErr := s.stateManager.Issue(ctx, tenantID, connectorID)
	if stateErr != nil {
		err = s.mapError(stateErr)
		return ConnectResult{}, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = connector.Descriptor().RequiredScopes
	}
	authorizationURL, buildErr := connector.BuildAuthorizationURL(ctx, tenantID, state, strings.TrimSpace(req.RedirectURI), scopes)
	if buildErr != nil {
		err = s.mapError(buildErr)
		return ConnectResult{}, err
	}

	return ConnectResult{AuthorizationURL: authorizationURL, State: state}, nil
}

// CompleteCallback finishes an OAuth flow. The connector id is recovered
// from the consumed state entry; when the request names one too, the two
// must agree.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID := NormalizeTenant(req.TenantID)

	var err error
	var connectorID string
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_callback", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return Connection{}, err
	}

	connectorID, stateErr := s.stateManager.ValidateAndConsume(ctx, req.State, tenantID)
	if stateErr != nil {
		err = s.mapError(stateErr)
		return Connection{}, err
	}
	if requested := strings.TrimSpace(req.ConnectorID); requested != "" && requested != connectorID {
		err = s.mapError(fmt.Errorf("core: oauth state connector mismatch"))
		return Connection{}, err
	}

	connector, gateErr := s.connectorFor(connectorID, CapabilityOAuth)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return Connection{}, err
	}

	var material TokenMaterial
	var grantedScopes []string
	_, exchangeErr := s.retry.Run(ctx, "exchange_code", func(ctx context.Context) error {
		ctx, cancel := s.vendorContext(ctx)
		defer cancel()
		exchanged, scopes, vendorErr := connector.ExchangeCode(ctx, code, "")
		if vendorErr != nil {
			return vendorErr
		}
		material = exchanged
		grantedScopes = scopes
		return nil
	})
	if exchangeErr != nil {
		err = s.mapError(exchangeErr)
		return Connection{}, err
	}

	stored, putErr := s.credentialStore.Put(ctx, CredentialRecord{
		TenantID:    tenantID,
		ConnectorID: connectorID,
		Mode:        AuthModeOAuth,
		Token:       material,
		Scopes:      grantedScopes,
	})
	if putErr != nil {
		err = s.mapError(putErr)
		return Connection{}, err
	}
	return stored.Connection(), nil
}

// ValidatePAT probes the vendor with the supplied token and stores it on
// success.
func (s *Service) ValidatePAT(ctx context.Context, tenantID, connectorID string, creds PATCredentials) (Connection, error) {
	if s == nil {
		return Connection{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "validate_pat", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	if validateErr := creds.Validate(); validateErr != nil {
		err = s.mapError(validateErr)
		return Connection{}, err
	}

	connector, gateErr := s.connectorFor(connectorID, CapabilityPAT)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return Connection{}, err
	}

	var material TokenMaterial
	_, probeErr := s.retry.Run(ctx, "validate_pat", func(ctx context.Context) error {
		ctx, cancel := s.vendorContext(ctx)
		defer cancel()
		validated, vendorErr := connector.ValidatePAT(ctx, creds)
		if vendorErr != nil {
			return vendorErr
		}
		material = validated
		return nil
	})
	if probeErr != nil {
		err = s.mapError(probeErr)
		return Connection{}, err
	}

	stored, putErr := s.credentialStore.Put(ctx, CredentialRecord{
		TenantID:    tenantID,
		ConnectorID: connectorID,
		Mode:        AuthModePAT,
		Token:       material,
		BaseURL:     strings.TrimSpace(creds.BaseURL),
	})
	if putErr != nil {
		err = s.mapError(putErr)
		return Connection{}, err
	}
	return stored.Connection(), nil
}

func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchPage, error) {
	if s == nil {
		return SearchPage{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	req = req.normalized()

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "search", err, map[string]any{
			"tenant_id":    req.TenantID,
			"connector_id": req.ConnectorID,
		})
	}()

	if req.Query == "" {
		err = s.mapError(fmt.Errorf("core: search query is required"))
		return SearchPage{}, err
	}

	connector, gateErr := s.connectorFor(req.ConnectorID, CapabilitySearch)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return SearchPage{}, err
	}

	credential, credErr := s.credentialFor(ctx, req.TenantID, req.ConnectorID)
	if credErr != nil {
		err = s.mapError(credErr)
		return SearchPage{}, err
	}

	var page SearchPage
	_, searchErr := s.retry.Run(ctx, "search", func(ctx context.Context) error {
		ctx, cancel := s.vendorContext(ctx)
		defer cancel()
		result, vendorErr := connector.Search(ctx, credential, req)
		if vendorErr != nil {
			return vendorErr
		}
		page = result
		return nil
	})
	if searchErr != nil {
		err = s.mapError(searchErr)
		return SearchPage{}, err
	}
	return page, nil
}

// Create dispatches a write to the vendor. Without an idempotency key it
// runs a single attempt: a timed-out create may have landed, and retrying
// would duplicate it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (CreatedItem, error) {
	if s == nil {
		return CreatedItem{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID := NormalizeTenant(req.TenantID)
	connectorID := strings.TrimSpace(req.ConnectorID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "create", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	if len(req.Payload) == 0 {
		err = s.mapError(fmt.Errorf("core: create payload is required"))
		return CreatedItem{}, err
	}

	connector, gateErr := s.connectorFor(connectorID, CapabilityCreate)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return CreatedItem{}, err
	}

	credential, credErr := s.credentialFor(ctx, tenantID, connectorID)
	if credErr != nil {
		err = s.mapError(credErr)
		return CreatedItem{}, err
	}

	normalized := req
	normalized.TenantID = tenantID
	normalized.ConnectorID = connectorID
	normalized.Resource = strings.TrimSpace(req.Resource)
	normalized.Payload = copyAnyMap(req.Payload)

	runner := s.retry
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		runner.MaxAttempts = 1
	}

	var created CreatedItem
	_, createErr := runner.Run(ctx, "create", func(ctx context.Context) error {
		ctx, cancel := s.vendorContext(ctx)
		defer cancel()
		result, vendorErr := connector.Create(ctx, credential, normalized)
		if vendorErr != nil {
			return vendorErr
		}
		created = result
		return nil
	})
	if createErr != nil {
		err = s.mapError(createErr)
		return CreatedItem{}, err
	}
	return created, nil
}

// Collections lists the vendor groupings items are created under, such as
// Jira projects or Confluence spaces.
func (s *Service) Collections(ctx context.Context, tenantID, connectorID, resource string) ([]Collection, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "list_collections", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	connector, gateErr := s.connectorFor(connectorID, CapabilitySearch)
	if gateErr != nil {
		err = s.mapError(gateErr)
		return nil, err
	}
	lister, ok := connector.(CollectionLister)
	if !ok {
		err = s.mapError(fmt.Errorf("core: capability %q not supported by connector %s", "list_collections", connectorID))
		return nil, err
	}

	credential, credErr := s.credentialFor(ctx, tenantID, connectorID)
	if credErr != nil {
		err = s.mapError(credErr)
		return nil, err
	}

	var collections []Collection
	_, listErr := s.retry.Run(ctx, "list_collections", func(ctx context.Context) error {
		ctx, cancel := s.vendorContext(ctx)
		defer cancel()
		result, vendorErr := lister.ListCollections(ctx, credential, strings.TrimSpace(resource))
		if vendorErr != nil {
			return vendorErr
		}
		collections = result
		return nil
	})
	if listErr != nil {
		err = s.mapError(listErr)
		return nil, err
	}
	return collections, nil
}

func (s *Service) Disconnect(ctx context.Context, tenantID, connectorID string) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()
	tenantID = NormalizeTenant(tenantID)
	connectorID = strings.TrimSpace(connectorID)

	var err error
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, map[string]any{
			"tenant_id":    tenantID,
			"connector_id": connectorID,
		})
	}()

	if connectorID == "" {
		err = s.mapError(fmt.Errorf("core: connector id is required"))
		return err
	}
	if deleteErr := s.credentialStore.Delete(ctx, tenantID, connectorID); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

type MaintenanceResult struct {
	PurgedStates int
}

// RunMaintenance sweeps expired OAuth state entries. Safe to run on any
// schedule; skipping it costs memory, never correctness.
func (s *Service) RunMaintenance(ctx context.Context) (MaintenanceResult, error) {
	if s == nil {
		return MaintenanceResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.nowFn()

	var err error
	result := MaintenanceResult{}
	defer func() {
		s.observeOperation(ctx, startedAt, "maintenance", err, map[string]any{
			"purged_states": result.PurgedStates,
		})
	}()

	result.PurgedStates = s.stateManager.PurgeExpired(ctx)
	return result, nil
}

// vendorContext applies the configured vendor timeout to a single outbound
// attempt. Retries get a fresh deadline each time.
func (s *Service) vendorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s == nil || s.config.Vendor.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Vendor.Timeout)
}

func (s *Service) connectorFor(connectorID string, capability Capability) (Connector, error) {
	connectorID = strings.TrimSpace(connectorID)
	if connectorID == "" {
		return nil, fmt.Errorf("core: connector id is required")
	}
	connector, ok := s.registry.Get(connectorID)
	if !ok {
		return nil, fmt.Errorf("core: connector not registered: %s", connectorID)
	}
	if !connector.Descriptor().Supports(capability) {
		return nil, fmt.Errorf("core: capability %q not supported by connector %s", string(capability), connectorID)
	}
	return connector, nil
}

func (s *Service) credentialFor(ctx context.Context, tenantID, connectorID string) (CredentialRecord, error) {
	credential, err := s.credentialStore.Get(ctx, tenantID, connectorID)
	if err != nil {
		return CredentialRecord{}, err
	}
	if credential.Mode == AuthModeOAuth && credential.Token.Expired(s.nowFn()) {
		return CredentialRecord{}, fmt.Errorf("core: token expired, reauthorization required for %s/%s", tenantID, connectorID)
	}
	return credential, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
