package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"dualsight/internal/camera"
)

// Status はセッションの状態を表す
type Status string

const (
	StatusIdle    Status = "idle"    // 停止中
	StatusRunning Status = "running" // フレーム受信中
	StatusStale   Status = "stale"   // 開始済みだがフレームが途絶えている
)

// DefaultStaleAfter はフレームが途絶えてからStaleとみなすまでの時間
const DefaultStaleAfter = 3 * time.Second

// Info はセッションの状態のスナップショット
type Info struct {
	Status    Status        `json:"status"`
	Handle    camera.Handle `json:"handle"`
	Errors    uint64        `json:"errors"`
	LastFrame time.Time     `json:"last_frame"`
	Buffer    BufferStats   `json:"buffer"`
}

// Session はアダプターからの非同期配信をFrameBufferへ橋渡しする
type Session struct {
	adapter    camera.Adapter
	buf        *FrameBuffer
	logger     zerolog.Logger
	staleAfter time.Duration

	mu      sync.Mutex
	handle  camera.Handle
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// 配信ゴルーチンから更新されるためatomicで持つ
	status        atomic.Value
	lastFrame     atomic.Int64
	errCount      atomic.Uint64
	frameInterval atomic.Int64
}

// NewSession は新しいSessionを作成する
func NewSession(adapter camera.Adapter, buf *FrameBuffer, staleAfter time.Duration, logger zerolog.Logger) *Session {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	s := &Session{
		adapter:    adapter,
		buf:        buf,
		staleAfter: staleAfter,
		logger:     logger.With().Str("sensor", string(adapter.Kind())).Logger(),
	}
	s.status.Store(StatusIdle)
	return s
}

// Buffer はセッションが書き込むFrameBufferを返す
func (s *Session) Buffer() *FrameBuffer { return s.buf }

// Start は配信を開始する
//
// onFrameは任意で、フレームがバッファに格納された後、ロックの外で呼ばれる。
func (s *Session) Start(ctx context.Context, h camera.Handle, onFrame func(camera.Frame)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kind := s.adapter.Kind()
	if s.running {
		return camera.NewOpError(camera.ErrStreamStartFailed, kind, "start_stream", errors.New("既に開始されています"))
	}
	if err := ctx.Err(); err != nil {
		return camera.NewOpError(camera.ErrStreamStartFailed, kind, "start_stream", err)
	}

	sink := &sessionSink{session: s, epoch: s.buf.Epoch(), onFrame: onFrame}
	if err := s.adapter.StartStream(h, sink); err != nil {
		return camera.NewOpError(camera.ErrStreamStartFailed, kind, "start_stream", err)
	}

	s.handle = h
	s.running = true
	s.errCount.Store(0)
	s.lastFrame.Store(time.Now().UnixNano())
	s.status.Store(StatusRunning)

	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.watch(s.stopCh)

	s.logger.Info().Str("handle", h.ID).Msg("ストリームを開始しました")
	return nil
}

// Stop は配信を停止する。開始していなければ何もしない
//
// バッファの世代を先に進めるため、停止処理中に届いたフレームは捨てられる。
func (s *Session) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stopCh)
	s.wg.Wait()

	// Idleにしてから世代を進める。Doneを取得してからIdleでないことを
	// 確認した購読側は、必ずこのResetで閉じるチャンネルを持っている
	s.status.Store(StatusIdle)
	s.buf.Reset()
	err := s.adapter.StopStream(s.handle)

	s.logger.Info().Str("handle", s.handle.ID).Msg("ストリームを停止しました")

	s.running = false
	s.handle = camera.Handle{}

	return err
}

// SetFrameInterval は想定するフレーム間隔を設定する。0なら間隔を考慮しない
//
// 途絶の判定にはstaleAfterとフレーム間隔の2倍の長い方を使う。
func (s *Session) SetFrameInterval(d time.Duration) {
	s.frameInterval.Store(int64(max(d, 0)))
}

// StaleThreshold はフレームが途絶えたとみなすまでの時間を返す
func (s *Session) StaleThreshold() time.Duration {
	return max(s.staleAfter, 2*time.Duration(s.frameInterval.Load()))
}

// Status は現在の状態を返す
func (s *Session) Status() Status {
	return s.status.Load().(Status)
}

// Active はフレームを受け取れる状態（RunningまたはStale）かを返す
func (s *Session) Active() bool {
	return s.Status() != StatusIdle
}

// Handle は配信中のハンドルを返す
func (s *Session) Handle() camera.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Info は状態のスナップショットを返す
func (s *Session) Info() Info {
	info := Info{
		Status: s.Status(),
		Handle: s.Handle(),
		Errors: s.errCount.Load(),
		Buffer: s.buf.Stats(),
	}
	if info.Status != StatusIdle {
		info.LastFrame = time.Unix(0, s.lastFrame.Load())
	}
	return info
}

// watch はフレームの途絶を監視する
func (s *Session) watch(stopCh <-chan struct{}) {
	defer s.wg.Done()

	interval := max(s.staleAfter/2, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastFrame.Load())
			threshold := s.StaleThreshold()
			if time.Since(last) > threshold && s.status.CompareAndSwap(StatusRunning, StatusStale) {
				s.logger.Warn().Dur("since", time.Since(last)).Dur("threshold", threshold).Msg("フレームが途絶えています")
			}
		}
	}
}

func (s *Session) handleFrame(epoch uint64, f camera.Frame, onFrame func(camera.Frame)) {
	if !s.buf.Store(epoch, f) {
		return
	}

	s.lastFrame.Store(time.Now().UnixNano())
	if s.status.CompareAndSwap(StatusStale, StatusRunning) {
		s.logger.Info().Msg("フレームの受信が再開しました")
	}

	if onFrame != nil {
		onFrame(f)
	}
}

func (s *Session) handleError(epoch uint64, err error) {
	if epoch != s.buf.Epoch() {
		return
	}

	s.errCount.Add(1)
	ev := s.logger.Warn().Err(err)
	var opErr *camera.OpError
	if errors.As(err, &opErr) {
		ev = ev.EmbedObject(opErr)
	}
	ev.Msg("フレーム配信でエラーが発生しました")

	s.status.CompareAndSwap(StatusRunning, StatusStale)
}

// sessionSink は1回のStartに紐づくFrameSink
type sessionSink struct {
	session *Session
	epoch   uint64
	onFrame func(camera.Frame)
}

func (k *sessionSink) OnFrame(f camera.Frame) {
	k.session.handleFrame(k.epoch, f, k.onFrame)
}

func (k *sessionSink) OnError(err error) {
	k.session.handleError(k.epoch, err)
}
