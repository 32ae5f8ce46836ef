// Package timelapse は一定間隔でキャプチャを繰り返す
package timelapse

import (
	"time"
)

// MinInterval は撮影間隔の下限。ファイル名のタイムスタンプが秒単位のため
const MinInterval = time.Second

// Config はタイムラプス設定
type Config struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`           // 起動時に開始する
	Interval    time.Duration `yaml:"interval" json:"interval"`         // 撮影間隔 (デフォルト: 2秒)
	Dir         string        `yaml:"dir" json:"dir"`                   // 保存先。空なら保存設定のパス
	RotateDaily bool          `yaml:"rotate_daily" json:"rotate_daily"` // 日付ごとのサブディレクトリに保存する
}

// DefaultConfig はデフォルトのタイムラプス設定を返す
func DefaultConfig() Config {
	return Config{
		Enabled:     false,
		Interval:    2 * time.Second,
		RotateDaily: true,
	}
}

// Status はタイムラプスのステータス
type Status string

// Status の定数定義
const (
	StatusRecording Status = "recording" // 撮影中
	StatusStopped   Status = "stopped"   // 停止中
)

// StatusInfo はタイムラプスの状態情報
type StatusInfo struct {
	Status      Status        `json:"status"`
	Interval    time.Duration `json:"interval"`
	Dir         string        `json:"dir,omitempty"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	Captures    int           `json:"captures"` // 1つ以上の出力を保存した回数
	Partial     int           `json:"partial"`  // 一部の出力が失敗した回数
	Skipped     int           `json:"skipped"`  // 有効なセンサーがない・実行中で見送った回数
	Failures    int           `json:"failures"`
	LastCapture time.Time     `json:"last_capture,omitempty"`
	LastError   string        `json:"last_error,omitempty"`
}
