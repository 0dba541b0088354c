package logging

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// ServiceLogger is a json structured leveled logger
// used by the service to log messages to stdout
type ServiceLogger struct {
	*zerolog.Logger
}

var (
	serviceLogLevelToZeroLogLevel = map[string]zerolog.Level{
		"TRACE": zerolog.TraceLevel,
		"DEBUG": zerolog.DebugLevel,
		"INFO":  zerolog.InfoLevel,
		"ERROR": zerolog.ErrorLevel,
	}
)

// New creates and returns a new ServiceLogger and error (if any).
func New(logLevel string) (ServiceLogger, error) {
	zerologLevel, exists := serviceLogLevelToZeroLogLevel[logLevel]
	if !exists {
		return ServiceLogger{}, fmt.Errorf("invalid zero log level provided %s ", logLevel)
	}

	serviceLog := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	zerolog.SetGlobalLevel(zerologLevel)

	return ServiceLogger{
		Logger: &serviceLog,
	}, nil
}

// Nop returns a ServiceLogger that discards everything written to it,
// useful for tests and for components constructed without a logger
func Nop() *ServiceLogger {
	logger := zerolog.Nop()

	return &ServiceLogger{
		Logger: &logger,
	}
}

// Named returns a copy of the logger tagged with the given component name
func (l *ServiceLogger) Named(component string) *ServiceLogger {
	logger := l.Logger.With().Str("component", component).Logger()

	return &ServiceLogger{
		Logger: &logger,
	}
}
