//go:build !integration

package app

import (
	"testing"

	"github.com/guttosm/offline-cache/config"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want zerolog.Level
	}{
		{"defaults to info", config.LogConfig{}, zerolog.InfoLevel},
		{"explicit level", config.LogConfig{Level: "warn"}, zerolog.WarnLevel},
		{"pretty output", config.LogConfig{Level: "error", Pretty: true}, zerolog.ErrorLevel},
		{"debug flag wins over level", config.LogConfig{Level: "error", Debug: true}, zerolog.DebugLevel},
	}

	original := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(original) })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitializeLogger(tt.cfg)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}
