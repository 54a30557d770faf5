package core

var (
	_ Registry          = (*ConnectorRegistry)(nil)
	_ CredentialStore   = (*MemoryCredentialStore)(nil)
	_ OAuthStateManager = (*MemoryOAuthStateManager)(nil)
	_ CredentialCodec   = JSONCredentialCodec{}
	_ CredentialCodec   = LegacyTokenCredentialCodec{}
	_ MetricsRecorder   = NopMetricsRecorder{}
	_ BackoffScheduler  = ExponentialBackoffScheduler{}
	_ ErrorMapper       = connectorErrorMapper
)
