package logsvc

import (
	"fmt"
	"log"

	"github.com/rollbar/rollbar-go"
	rollbarerrors "github.com/rollbar/rollbar-go/errors"
)

type RollbarConfig struct {
	Token       string
	Environment string
	CodeVersion string
	ServerHost  string
}

// RollbarLogger logs locally and forwards warnings and errors to Rollbar.
// Reporting is disabled when no token is configured.
type RollbarLogger struct {
	*StdLogger
	enabled bool
}

var _ Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, debug bool, cfg RollbarConfig) *RollbarLogger {
	enabled := cfg.Token != ""
	rollbar.SetEnabled(enabled)
	if enabled {
		rollbar.SetToken(cfg.Token)
		rollbar.SetEnvironment(cfg.Environment)
		rollbar.SetServerHost(cfg.ServerHost)
		rollbar.SetCodeVersion(cfg.CodeVersion)
		rollbar.SetStackTracer(rollbarerrors.StackTracer)
	}
	return &RollbarLogger{StdLogger: New(std, debug), enabled: enabled}
}

func (l *RollbarLogger) Warnf(format string, args ...interface{}) {
	l.StdLogger.Warnf(format, args...)
	if l.enabled {
		rollbar.Warning(fmt.Sprintf(format, args...))
	}
}

func (l *RollbarLogger) Errorf(format string, args ...interface{}) {
	l.StdLogger.Errorf(format, args...)
	if l.enabled {
		rollbar.Error(fmt.Sprintf(format, args...))
	}
}

// Close flushes queued Rollbar items.
func (l *RollbarLogger) Close() {
	if l.enabled {
		rollbar.Close()
	}
}
