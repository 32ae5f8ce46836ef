// Package logger はzerologによる構造化ログを提供します。
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var globalLogger zerolog.Logger

// Config はログ出力の設定
type Config struct {
	Level      string `yaml:"level" json:"level"`             // debug, info, warn, error
	Debug      bool   `yaml:"debug" json:"debug"`             // trueならLevelより優先してdebug
	Output     string `yaml:"output" json:"output"`           // stdout, stderr, console
	TimeFormat string `yaml:"time_format" json:"time_format"` // 空ならRFC3339
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init はグローバルロガーを設定に従って初期化する
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// New は設定からロガーを作成する
func New(cfg Config) (zerolog.Logger, error) {
	var output io.Writer = os.Stdout

	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	case "console":
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	} else if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}

	if cfg.TimeFormat != "" {
		zerolog.TimeFieldFormat = cfg.TimeFormat
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), nil
}

// GetLogger はグローバルロガーを返す
func GetLogger() zerolog.Logger {
	return globalLogger
}

// WithComponent はlにcomponentフィールドを付けたロガーを返す
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}

// NewTestLogger は何も出力しないテスト用ロガーを返す
func NewTestLogger() zerolog.Logger {
	return zerolog.Nop()
}
