// Package sim は実機なしで動作するベンダーSDKの模擬実装を提供する
//
// 可視光・赤外線ともに独自のゴルーチンからコールバックでフレームを配信し、
// 実機SDKと同じくコールバックのバッファは次のフレームで再利用する。
package sim

import (
	"context"
	"time"

	"dualsight/internal/camera"
)

// ステータスコード
const (
	StatusHandle      uint32 = 0x80000000 // 無効なハンドル
	StatusCallOrder   uint32 = 0x80000003 // 呼び出し順序が不正
	StatusParameter   uint32 = 0x80000004 // 不正なパラメータ
	StatusNoDevice    uint32 = 0x80000007 // デバイスが存在しない
	StatusAccessDeny  uint32 = 0x80000203 // 既に使用中
	StatusLoginFailed uint32 = 0x80001100 // 認証失敗
)

// DefaultFrameInterval はフレーム配信間隔の既定値
const DefaultFrameInterval = 100 * time.Millisecond

func vendorErr(call string, code uint32) error {
	return &camera.VendorError{Call: call, Code: code}
}

// producer はn番目のフレームをbufに書き込む
type producer func(n uint64, buf []byte) camera.RawFrame

// runner はフレーム配信ゴルーチン
type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startRunner はintervalごとにフレームを生成してcbへ渡すゴルーチンを起動する
func startRunner(interval time.Duration, produce producer, cb camera.FrameCallback) *runner {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var buf []byte
		var n uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n++
				frame := produce(n, buf)
				buf = frame.Data
				cb(frame, nil)
			}
		}
	}()

	return r
}

// stop は配信を止め、最後のコールバックが戻るまで待つ
func (r *runner) stop() {
	r.cancel()
	<-r.done
}

func grow(buf []byte, size int) []byte {
	if cap(buf) >= size {
		return buf[:size]
	}
	return make([]byte, size)
}
