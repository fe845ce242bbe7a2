package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
)

func TestInitLoggersTwice(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("second InitLoggers panicked: %v", r)
		}
	}()

	InitLoggers("error")
	InitLoggers("debug")
	logger.GetLogger("store").Debugf("loggers initialized twice")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"info":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
