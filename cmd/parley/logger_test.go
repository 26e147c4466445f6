package main

import (
	"testing"

	"github.com/teilomillet/parley/config"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		enabled zapcore.Level
		wantErr bool
	}{
		{name: "info json", cfg: config.LoggingConfig{Level: "info", Format: "json"}, enabled: zapcore.InfoLevel},
		{name: "debug text", cfg: config.LoggingConfig{Level: "debug", Format: "text"}, enabled: zapcore.DebugLevel},
		{name: "warn", cfg: config.LoggingConfig{Level: "warn", Format: "json"}, enabled: zapcore.WarnLevel},
		{name: "bad level", cfg: config.LoggingConfig{Level: "loud", Format: "json"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger: %v", err)
			}
			if !logger.Core().Enabled(tt.enabled) {
				t.Fatalf("level %s should be enabled", tt.enabled)
			}
			if tt.enabled > zapcore.DebugLevel && logger.Core().Enabled(tt.enabled-1) {
				t.Fatalf("level %s should be disabled", tt.enabled-1)
			}
		})
	}
}
