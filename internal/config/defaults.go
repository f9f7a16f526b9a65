package config

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

const (
	defaultConfigPath          = "~/.config/cadence/config.toml"
	defaultRedirectURI         = "http://127.0.0.1:8080/auth/callback"
	defaultAuthURL             = "https://accounts.spotify.com/authorize"
	defaultTokenURL            = "https://accounts.spotify.com/api/token"
	defaultAPIBaseURL          = "https://api.spotify.com/v1"
	defaultVerifierLength      = 128
	defaultExpiryMarginSeconds = 300
	defaultTimeoutSeconds      = 10
	defaultMaxRetries          = 3
	defaultRetryBackoffMs      = 1000
	defaultMaxBackoffMs        = 30000
	defaultBatchSize           = 100
	defaultStoragePath         = "~/.local/share/cadence/cadence.db"
	defaultVerifierTTLSeconds  = 600
	defaultCatalogSource       = "data/catalog.csv"
	defaultTimeRange           = "medium_term"
	defaultSeedLimit           = 50
	defaultTopN                = 20
	defaultFieldSet            = "basic"
	defaultStrategy            = "mean"
	defaultPopularityWeight    = 0.5
	defaultBind                = "127.0.0.1:8080"
	defaultWorkers             = 2
	defaultQueueSize           = 100
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// DefaultScopes are the scopes the pipeline and playlist export need.
var DefaultScopes = []string{
	"user-read-private",
	"user-read-email",
	"user-top-read",
	"playlist-modify-private",
	"playlist-modify-public",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Spotify: Spotify{
			RedirectURI:         defaultRedirectURI,
			Scopes:              append([]string(nil), DefaultScopes...),
			AuthURL:             defaultAuthURL,
			TokenURL:            defaultTokenURL,
			APIBaseURL:          defaultAPIBaseURL,
			VerifierLength:      defaultVerifierLength,
			ExpiryMarginSeconds: defaultExpiryMarginSeconds,
			TimeoutSeconds:      defaultTimeoutSeconds,
			MaxRetries:          defaultMaxRetries,
			RetryBackoffMs:      defaultRetryBackoffMs,
			MaxBackoffMs:        defaultMaxBackoffMs,
			BatchSize:           defaultBatchSize,
		},
		Storage: Storage{
			Driver:             DriverSQLite,
			Path:               defaultStoragePath,
			VerifierTTLSeconds: defaultVerifierTTLSeconds,
		},
		Catalog: Catalog{
			Source: defaultCatalogSource,
		},
		Recommend: Recommend{
			TimeRange:        defaultTimeRange,
			SeedLimit:        defaultSeedLimit,
			TopN:             defaultTopN,
			FieldSet:         defaultFieldSet,
			Strategy:         defaultStrategy,
			PopularityWeight: defaultPopularityWeight,
		},
		Server: Server{
			Bind:      defaultBind,
			Workers:   defaultWorkers,
			QueueSize: defaultQueueSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
