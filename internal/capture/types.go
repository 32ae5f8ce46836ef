// Package capture は複数センサーの同期スナップショットを取得して保存する
package capture

import (
	"time"
)

// BusyPolicy はキャプチャ実行中に次の要求が来たときの扱い
type BusyPolicy string

const (
	BusyWait   BusyPolicy = "wait"   // LockTimeoutまで待つ
	BusyReject BusyPolicy = "reject" // 即座にErrCaptureBusyを返す
)

// DefaultLockTimeout はBusyWait時の待ち時間の既定値
const DefaultLockTimeout = 5 * time.Second

// Config はキャプチャの設定
type Config struct {
	BusyPolicy  BusyPolicy    `yaml:"busy_policy" json:"busy_policy"`
	LockTimeout time.Duration `yaml:"lock_timeout" json:"lock_timeout"`
}

// DefaultConfig はデフォルトのキャプチャ設定を返す
func DefaultConfig() Config {
	return Config{
		BusyPolicy:  BusyWait,
		LockTimeout: DefaultLockTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.BusyPolicy != BusyReject {
		c.BusyPolicy = BusyWait
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = DefaultLockTimeout
	}
	return c
}
