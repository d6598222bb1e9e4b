package main

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nekogravitycat/court-reservation-engine/internal/config"
)

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		level string
		want  zerolog.Level
	}{
		{name: "explicit debug", env: config.PROD_STRING, level: "debug", want: zerolog.DebugLevel},
		{name: "explicit warn in dev", env: "dev", level: "warn", want: zerolog.WarnLevel},
		{name: "unknown falls back to info", env: config.PROD_STRING, level: "loud", want: zerolog.InfoLevel},
		{name: "empty falls back to info", env: "dev", level: "", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newLogger(&config.Config{AppEnv: tt.env, LogLevel: tt.level})
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}
