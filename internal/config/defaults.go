package config

const (
	defaultOutputDir            = "~/Music/trawl"
	defaultStateDir             = "~/.local/share/trawl"
	defaultLogDir               = "~/.local/share/trawl/logs"
	defaultCatalogBackend       = "http"
	defaultCatalogBaseURL       = "https://api.catalog.example.com/v1"
	defaultCatalogTimeout       = 30
	defaultCatalogRetries       = 3
	defaultCatalogUserAgent     = "trawl/dev"
	defaultCheckpointBackend    = "auto"
	defaultCheckpointKeyPrefix  = "trawl:progress:"
	defaultCheckpointTTLDays    = 30
	defaultCompletedTTLDays     = 7
	defaultQuality              = "high"
	defaultParallel             = 2
	defaultMaxRetries           = 3
	defaultRetryCooldownSeconds = 1
	defaultRetryExponent        = 2.0
	defaultFileExtension        = "mp3"
	defaultTracksPerArtist      = 10
	defaultMaxSimilarAttempts   = 20
	defaultServerBind           = "127.0.0.1:8080"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			StateDir:  defaultStateDir,
			LogDir:    defaultLogDir,
		},
		Catalog: Catalog{
			Backend:        defaultCatalogBackend,
			BaseURL:        defaultCatalogBaseURL,
			TimeoutSeconds: defaultCatalogTimeout,
			Retries:        defaultCatalogRetries,
			UserAgent:      defaultCatalogUserAgent,
		},
		Checkpoint: Checkpoint{
			Backend:          defaultCheckpointBackend,
			KeyPrefix:        defaultCheckpointKeyPrefix,
			TTLDays:          defaultCheckpointTTLDays,
			CompletedTTLDays: defaultCompletedTTLDays,
		},
		Download: Download{
			Quality:              defaultQuality,
			Parallel:             defaultParallel,
			MaxRetries:           defaultMaxRetries,
			RetryCooldownSeconds: defaultRetryCooldownSeconds,
			RetryExponent:        defaultRetryExponent,
			FileExtension:        defaultFileExtension,
		},
		Discovery: Discovery{
			TracksPerArtist:    defaultTracksPerArtist,
			MaxSimilarAttempts: defaultMaxSimilarAttempts,
		},
		Server: Server{
			Bind: defaultServerBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
