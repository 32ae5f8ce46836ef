package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"dualsight/internal/capture"
	"dualsight/internal/logger"
	"dualsight/internal/stream"
	"dualsight/internal/timelapse"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig     `yaml:"server" json:"server"`
	Visible   VisibleConfig    `yaml:"visible" json:"visible"`
	Infrared  InfraredConfig   `yaml:"infrared" json:"infrared"`
	Store     StoreConfig      `yaml:"store" json:"store"`
	Capture   capture.Config   `yaml:"capture" json:"capture"`
	Stream    StreamConfig     `yaml:"stream" json:"stream"`
	Timelapse timelapse.Config `yaml:"timelapse" json:"timelapse"`
	Log       logger.Config    `yaml:"log" json:"log"`
	Driver    string           `yaml:"driver" json:"driver"` // SDK実装 (sim)
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host" json:"host"` // リッスンするホスト
	Port int    `yaml:"port" json:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`   // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"` // 書き込みタイムアウト
}

// VisibleConfig は可視光カメラの設定
type VisibleConfig struct {
	DeviceIndex int     `yaml:"device_index" json:"device_index"` // 列挙順のインデックス
	Exposure    float64 `yaml:"exposure" json:"exposure"`         // 露光時間 (us)
	Gain        float64 `yaml:"gain" json:"gain"`                 // ゲイン (dB)
	FrameRate   float64 `yaml:"frame_rate" json:"frame_rate"`     // フレームレート (fps)
}

// InfraredConfig は赤外線カメラの接続設定
type InfraredConfig struct {
	Server   string `yaml:"server" json:"server"`
	Port     int    `yaml:"port" json:"port"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"-"`
	Palette  int    `yaml:"palette" json:"palette"` // 1..12
}

// StoreConfig は保存先と保存対象の設定
type StoreConfig struct {
	Path            string `yaml:"path" json:"path"`
	SaveVisible     Flag   `yaml:"save_visible" json:"save_visible"`
	SaveInfrared    Flag   `yaml:"save_infrared" json:"save_infrared"`
	SaveTemperature Flag   `yaml:"save_temperature" json:"save_temperature"`
	Quality         int    `yaml:"quality" json:"quality"` // JPEG品質 1..100
}

// StreamConfig はストリーミングの設定
type StreamConfig struct {
	StaleAfter time.Duration `yaml:"stale_after" json:"stale_after"` // この時間フレームが来なければstale
}

// 既定値
const (
	DefaultInfraredServer   = "192.168.1.168"
	DefaultInfraredPort     = 80
	DefaultInfraredUser     = "admin"
	DefaultInfraredPassword = "admin123"
	DefaultStoreDir         = "records"
	DefaultDriver           = "sim"
)

// Default はデフォルト設定を返す
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
		},
		Visible: VisibleConfig{
			DeviceIndex: 0,
			Exposure:    10000,
			Gain:        0,
			FrameRate:   30,
		},
		Infrared: InfraredConfig{
			Server:   DefaultInfraredServer,
			Port:     DefaultInfraredPort,
			User:     DefaultInfraredUser,
			Password: DefaultInfraredPassword,
			Palette:  1,
		},
		Store:   DefaultStore(),
		Capture: capture.DefaultConfig(),
		Stream: StreamConfig{
			StaleAfter: stream.DefaultStaleAfter,
		},
		Timelapse: timelapse.DefaultConfig(),
		Log: logger.Config{
			Level:  "info",
			Output: "console",
		},
		Driver: DefaultDriver,
	}
}

// DefaultStore は保存設定の既定値を返す
func DefaultStore() StoreConfig {
	return StoreConfig{
		Path:            defaultStorePath(),
		SaveVisible:     NewFlag(true),
		SaveInfrared:    NewFlag(true),
		SaveTemperature: NewFlag(true),
		Quality:         95,
	}
}

func defaultStorePath() string {
	wd, err := os.Getwd()
	if err != nil {
		return DefaultStoreDir
	}
	return filepath.Join(wd, DefaultStoreDir)
}

// Load は設定を読み込む
//
// デフォルト値に対してYAMLファイル、環境変数の順に上書きする。
// pathが空またはファイルが存在しない場合はデフォルト値から始める。
// 不正な値の補正は Validator.Apply で行う。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// ファイルがなければデフォルトのまま
		case err != nil:
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("設定ファイルの解析に失敗: %w", err)
			}
		}
	}

	cfg.applyEnv()

	return cfg, nil
}

// Save は設定をYAMLとして書き出す
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("設定ディレクトリの作成に失敗: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("設定のエンコードに失敗: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("設定ファイルの書き込みに失敗: %w", err)
	}
	return nil
}

// applyEnv は環境変数による上書きを反映する
func (c *Config) applyEnv() {
	c.Server.Host = getEnvOrDefault("DUALSIGHT_HOST", c.Server.Host)
	c.Server.Port = getEnvAsIntOrDefault("PORT", c.Server.Port)
	c.Infrared.Server = getEnvOrDefault("DUALSIGHT_IR_SERVER", c.Infrared.Server)
	c.Infrared.Port = getEnvAsIntOrDefault("DUALSIGHT_IR_PORT", c.Infrared.Port)
	c.Infrared.User = getEnvOrDefault("DUALSIGHT_IR_USER", c.Infrared.User)
	c.Infrared.Password = getEnvOrDefault("DUALSIGHT_IR_PASSWORD", c.Infrared.Password)
	c.Store.Path = getEnvOrDefault("DUALSIGHT_STORE_PATH", c.Store.Path)
	c.Log.Level = getEnvOrDefault("DUALSIGHT_LOG_LEVEL", c.Log.Level)
	c.Driver = getEnvOrDefault("DUALSIGHT_DRIVER", c.Driver)
}

// Validate は設定に起動できない値が残っていないかを検証する
//
// 補正可能な値は Validator.Apply が既定値に戻すため、ここで検出されるのは
// 補正前の設定を直接渡された場合のみ。
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}
	if c.Driver != DefaultDriver {
		return fmt.Errorf("未対応のドライバー: %s", c.Driver)
	}
	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
