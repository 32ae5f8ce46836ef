package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dualsight/internal/camera"
)

func frame(seq uint64) camera.Frame {
	return camera.Frame{Data: []byte{byte(seq)}, Width: 1, Height: 1, Format: camera.PixelMono8, Seq: seq, Timestamp: time.Now()}
}

func TestFrameBuffer_EmptyUntilFirstFrame(t *testing.T) {
	b := NewFrameBuffer(camera.KindVisible)

	_, ok := b.Latest()
	assert.False(t, ok)

	require.True(t, b.Store(b.Epoch(), frame(1)))
	f, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
}

func TestFrameBuffer_OverwriteCountsDrops(t *testing.T) {
	b := NewFrameBuffer(camera.KindInfrared)
	epoch := b.Epoch()

	b.Store(epoch, frame(1))
	b.Store(epoch, frame(2)) // 1は未読のまま上書き
	_, _ = b.Latest()
	b.Store(epoch, frame(3)) // 2は読まれている

	f, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), f.Seq)

	stats := b.Stats()
	assert.Equal(t, uint64(3), stats.Published)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestFrameBuffer_ResetDiscardsStaleEpoch(t *testing.T) {
	b := NewFrameBuffer(camera.KindVisible)
	old := b.Epoch()
	b.Store(old, frame(1))

	b.Reset()
	_, ok := b.Latest()
	assert.False(t, ok)

	assert.False(t, b.Store(old, frame(2)))
	_, ok = b.Latest()
	assert.False(t, ok)
	assert.Equal(t, uint64(1), b.Stats().Discarded)

	assert.True(t, b.Store(b.Epoch(), frame(3)))
}

func TestFrameBuffer_ResetClosesDone(t *testing.T) {
	b := NewFrameBuffer(camera.KindVisible)
	done := b.Done()

	select {
	case <-done:
		t.Fatal("Reset前に閉じています")
	default:
	}

	b.Reset()
	select {
	case <-done:
	default:
		t.Fatal("Resetで閉じられていません")
	}

	// 新しい世代のチャンネルは開いている
	select {
	case <-b.Done():
		t.Fatal("新しい世代のチャンネルが閉じています")
	default:
	}
}

func TestFrameBuffer_SubscribeCoalesces(t *testing.T) {
	b := NewFrameBuffer(camera.KindVisible)
	ch, cancel := b.Subscribe()
	defer cancel()

	epoch := b.Epoch()
	b.Store(epoch, frame(1))
	b.Store(epoch, frame(2))

	select {
	case <-ch:
	default:
		t.Fatal("通知が届いていません")
	}
	select {
	case <-ch:
		t.Fatal("通知は1つに合流されるべきです")
	default:
	}

	cancel()
	b.Store(epoch, frame(3))
	select {
	case <-ch:
		t.Fatal("解除後に通知が届きました")
	default:
	}
}

func TestFrameBuffer_ConcurrentReadWrite(t *testing.T) {
	b := NewFrameBuffer(camera.KindVisible)
	epoch := b.Epoch()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= 1000; i++ {
			b.Store(epoch, camera.Frame{Data: []byte{byte(i), byte(i)}, Seq: i})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			if f, ok := b.Latest(); ok {
				// 書きかけのフレームは見えない
				assert.Equal(t, f.Data[0], f.Data[1])
			}
		}
	}()
	wg.Wait()

	f, ok := b.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1000), f.Seq)
}
