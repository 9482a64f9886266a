package config

const (
	defaultStateDir        = "~/.local/share/drivesync"
	defaultLogDir          = "~/.local/share/drivesync/logs"
	defaultCredentialsFile = "~/.config/drivesync/credentials.json"
	defaultTokenFile       = "~/.config/drivesync/token.json"
	defaultWorkers         = 3
	defaultRetryAttempts   = 4
	defaultRetryBaseMS     = 500
	defaultRetryMaxMS      = 30000
	defaultConflictPolicy  = "ask"
	defaultNtfyTimeout     = 10
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:        defaultStateDir,
			LogDir:          defaultLogDir,
			CredentialsFile: defaultCredentialsFile,
			TokenFile:       defaultTokenFile,
		},
		Drive: Drive{
			Workers: defaultWorkers,
		},
		Photos: Photos{
			Workers: defaultWorkers,
		},
		Retry: Retry{
			MaxAttempts: defaultRetryAttempts,
			BaseDelayMS: defaultRetryBaseMS,
			MaxDelayMS:  defaultRetryMaxMS,
		},
		Conflicts: Conflicts{
			Policy: defaultConflictPolicy,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
