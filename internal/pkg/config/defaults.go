package config

// Default values for configuration.
const (
	// API defaults
	DefaultAPIBaseURL     = "http://localhost:8000/api/v1"
	DefaultAPITimeoutSecs = 15

	// Cache defaults
	DefaultCacheTTLSecs        = 30
	DefaultCleanupIntervalSecs = 300

	// Session defaults
	DefaultTokenFile = ".miniapp/token"

	// DevServer defaults
	DefaultServerHost          = "0.0.0.0"
	DefaultServerPort          = 8000
	DefaultShutdownTimeoutSecs = 15

	// Logging defaults
	DefaultLogLevel = "info"
)

// defaultConfig возвращает конфигурацию со значениями по умолчанию
func defaultConfig() *Config {
	return &Config{
		API: API{
			BaseURL:        DefaultAPIBaseURL,
			TimeoutSeconds: DefaultAPITimeoutSecs,
		},
		Cache: Cache{
			TTLSeconds:             DefaultCacheTTLSecs,
			CleanupIntervalSeconds: DefaultCleanupIntervalSecs,
		},
		Session: Session{
			TokenFile: DefaultTokenFile,
		},
		DevServer: DevServer{
			Host:                   DefaultServerHost,
			Port:                   DefaultServerPort,
			ShutdownTimeoutSeconds: DefaultShutdownTimeoutSecs,
		},
		Logging: Logging{
			Level: DefaultLogLevel,
		},
	}
}
