package logging

import "jobscout/internal/logging/types"

// Aliases so callers only import this package
type (
	LogLevel      = types.LogLevel
	LogEntry      = types.LogEntry
	LogAdapter    = types.LogAdapter
	Logger        = types.Logger
	AdapterConfig = types.AdapterConfig
)

const (
	DebugLevel = types.DebugLevel
	InfoLevel  = types.InfoLevel
	WarnLevel  = types.WarnLevel
	ErrorLevel = types.ErrorLevel
	FatalLevel = types.FatalLevel
)

// ParseLogLevel maps logging.level from config to a LogLevel
func ParseLogLevel(s string) LogLevel {
	return types.ParseLevel(s)
}
