package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want zerolog.Level
	}{
		{"デフォルトはinfo", Config{}, zerolog.InfoLevel},
		{"レベル指定", Config{Level: "warn"}, zerolog.WarnLevel},
		{"Debugが優先", Config{Level: "error", Debug: true}, zerolog.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)
}

func TestInit_ReplacesGlobal(t *testing.T) {
	prev := GetLogger()
	t.Cleanup(func() { globalLogger = prev })

	require.NoError(t, Init(Config{Level: "error", Output: "stderr"}))
	assert.Equal(t, zerolog.ErrorLevel, GetLogger().GetLevel())
	assert.Equal(t, zerolog.ErrorLevel, WithComponent(GetLogger(), "rig").GetLevel())
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	l := WithComponent(zerolog.New(&buf), "capture")

	l.Info().Msg("ok")
	assert.Contains(t, buf.String(), `"component":"capture"`)

	// テスト用ロガーは何も書かない
	assert.Equal(t, zerolog.Disabled, NewTestLogger().GetLevel())
}
