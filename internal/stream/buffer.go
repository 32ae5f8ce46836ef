package stream

import (
	"sync"
	"time"

	"dualsight/internal/camera"
)

// BufferStats はFrameBufferの統計情報
type BufferStats struct {
	Published uint64    `json:"published"` // 格納されたフレーム数
	Dropped   uint64    `json:"dropped"`   // 読まれる前に上書きされたフレーム数
	Discarded uint64    `json:"discarded"` // 停止後に届いて捨てたフレーム数
	LastFrame time.Time `json:"last_frame"`
}

// FrameBuffer はセンサー1台分の最新フレームを1枚だけ保持する
//
// キューは持たず、新しいフレームは未読のフレームを上書きする。
// 読み出しと書き込みはスロット単位で排他され、書きかけのフレームが見えることはない。
type FrameBuffer struct {
	kind camera.Kind

	mu     sync.Mutex
	frame  camera.Frame
	valid  bool
	read   bool
	epoch  uint64
	stats  BufferStats
	notify map[chan struct{}]struct{}
	done   chan struct{} // 現在の世代が終わると閉じる
}

// NewFrameBuffer は新しいFrameBufferを作成する
func NewFrameBuffer(kind camera.Kind) *FrameBuffer {
	return &FrameBuffer{
		kind:   kind,
		notify: make(map[chan struct{}]struct{}),
		done:   make(chan struct{}),
	}
}

// Kind はセンサーの種類を返す
func (b *FrameBuffer) Kind() camera.Kind { return b.kind }

// Epoch は現在の世代を返す
//
// Storeは取得時と同じ世代でのみ成功する。Resetで世代が進む。
func (b *FrameBuffer) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Store はフレームを格納する。世代が古い場合は捨ててfalseを返す
func (b *FrameBuffer) Store(epoch uint64, f camera.Frame) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if epoch != b.epoch {
		b.stats.Discarded++
		return false
	}

	if b.valid && !b.read {
		b.stats.Dropped++
	}
	b.frame = f
	b.valid = true
	b.read = false
	b.stats.Published++
	b.stats.LastFrame = f.Timestamp

	for ch := range b.notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return true
}

// Latest は最新のフレームを返す。まだ無ければfalse
func (b *FrameBuffer) Latest() (camera.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.valid {
		return camera.Frame{}, false
	}
	b.read = true
	return b.frame, true
}

// Reset はフレームを破棄して世代を進める
//
// Doneで受け取ったチャンネルは閉じられ、購読側に配信の終了が伝わる。
func (b *FrameBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.epoch++
	b.frame = camera.Frame{}
	b.valid = false
	b.read = false

	close(b.done)
	b.done = make(chan struct{})
}

// Done は現在の世代が終わると閉じるチャンネルを返す
func (b *FrameBuffer) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Subscribe は新しいフレームの到着を知らせるチャンネルを返す
//
// 通知は合流する（容量1）。受信側はLatestで最新フレームを読むこと。
func (b *FrameBuffer) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.notify[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.notify, ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Stats は統計情報を返す
func (b *FrameBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}
