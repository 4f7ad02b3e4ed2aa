package config

const (
	defaultDatabasePath       = "~/.local/share/seiso/bibbi.db"
	defaultReportDir          = "~/.local/share/seiso/reports"
	defaultCheckpointDir      = "~/.local/share/seiso/checkpoints"
	defaultHarvestDir         = "~/.local/share/seiso/oai-harvest/noraf"
	defaultLogDir             = "~/.local/share/seiso/logs"
	defaultUpdateLogPath      = "~/.local/share/seiso/noraf_updates.log"
	defaultLockPath           = "~/.local/share/seiso/seiso.lock"
	defaultNorafBaseURL       = "https://authority.bibsys.no/authority/rest/authorities/v2"
	defaultNorafSRUURL        = "https://authority.bibsys.no/authority/rest/sru"
	defaultNorafUserAgent     = "seiso/1.0"
	defaultNorafRateLimit     = 10
	defaultNorafTimeout       = 30
	defaultAlmaBaseURL        = "https://ub-lsm.uio.no/alma"
	defaultAlmaTimeout        = 30
	defaultViafBaseURL        = "https://www.viaf.org/viaf"
	defaultViafTimeout        = 30
	defaultCheckpointInterval = 500
	defaultNotifyTimeout      = 10
	defaultLogLevel           = "info"
	defaultLogFormat          = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatabasePath:  defaultDatabasePath,
			ReportDir:     defaultReportDir,
			CheckpointDir: defaultCheckpointDir,
			HarvestDir:    defaultHarvestDir,
			LogDir:        defaultLogDir,
			UpdateLogPath: defaultUpdateLogPath,
			LockPath:      defaultLockPath,
		},
		Noraf: Noraf{
			BaseURL:          defaultNorafBaseURL,
			SRUURL:           defaultNorafSRUURL,
			UserAgent:        defaultNorafUserAgent,
			RateLimitSeconds: defaultNorafRateLimit,
			TimeoutSeconds:   defaultNorafTimeout,
		},
		Alma: Alma{
			BaseURL:        defaultAlmaBaseURL,
			TimeoutSeconds: defaultAlmaTimeout,
		},
		Viaf: Viaf{
			BaseURL:        defaultViafBaseURL,
			TimeoutSeconds: defaultViafTimeout,
		},
		Verify: Verify{
			CheckpointInterval: defaultCheckpointInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
