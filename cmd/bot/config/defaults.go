package config

// Default values for bot configuration.
const (
	DefaultBackendURL         = "http://localhost:8000/api/v1"
	DefaultHTTPTimeoutSeconds = 15
)
