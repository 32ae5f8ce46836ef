package timelapse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/logger"
)

// CaptureFunc はdirに1回キャプチャする。dirが空なら保存設定のパスを使う
type CaptureFunc func(ctx context.Context, dir string) (*capture.Result, error)

// Manager はタイムラプス撮影を管理する
type Manager struct {
	capture CaptureFunc
	logger  zerolog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
	info   StatusInfo
}

// NewManager は新しいManagerを作成する
func NewManager(fn CaptureFunc, l zerolog.Logger) *Manager {
	return &Manager{
		capture: fn,
		logger:  logger.WithComponent(l, "timelapse"),
		now:     time.Now,
		info:    StatusInfo{Status: StatusStopped},
	}
}

// Start はタイムラプス撮影を開始する
func (m *Manager) Start(ctx context.Context, cfg Config) error {
	if cfg.Interval < MinInterval {
		return fmt.Errorf("%w: 撮影間隔は %s 以上にしてください (%s)", camera.ErrInvalidParameter, MinInterval, cfg.Interval)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return fmt.Errorf("%w: タイムラプスは既に開始されています", camera.ErrInvalidState)
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cfg = cfg
	m.cancel = cancel
	m.done = make(chan struct{})
	m.info = StatusInfo{
		Status:    StatusRecording,
		Interval:  cfg.Interval,
		Dir:       cfg.Dir,
		StartedAt: m.now(),
	}

	go m.run(ctx, cfg, m.done)

	m.logger.Info().Dur("interval", cfg.Interval).Str("dir", cfg.Dir).Msg("タイムラプスを開始しました")
	return nil
}

// Stop はタイムラプス撮影を停止し、実行中のキャプチャの終了を待つ
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("タイムラプスの停止を待てませんでした: %w", ctx.Err())
	}

	m.mu.Lock()
	m.info.Status = StatusStopped
	m.mu.Unlock()

	m.logger.Info().Msg("タイムラプスを停止しました")
	return nil
}

// Status は現在の状態を返す
func (m *Manager) Status() StatusInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}

// run は撮影間隔ごとにキャプチャする
func (m *Manager) run(ctx context.Context, cfg Config, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.captureOnce(ctx, cfg)
		}
	}
}

// captureOnce は1回キャプチャして結果を集計する
func (m *Manager) captureOnce(ctx context.Context, cfg Config) {
	dir := cfg.Dir
	if cfg.RotateDaily && dir != "" {
		dir = filepath.Join(dir, m.now().Format("20060102"))
	}

	res, err := m.capture(ctx, dir)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err == nil:
		m.info.Captures++
		m.info.LastCapture = res.Timestamp
	case errors.Is(err, camera.ErrPartialCapture):
		m.info.Captures++
		m.info.Partial++
		m.info.LastError = err.Error()
		if res != nil {
			m.info.LastCapture = res.Timestamp
		}
	case errors.Is(err, camera.ErrNothingToCapture), errors.Is(err, camera.ErrCaptureBusy):
		m.info.Skipped++
		m.logger.Debug().Err(err).Msg("タイムラプスのキャプチャを見送りました")
	case ctx.Err() != nil:
		// 停止中
	default:
		m.info.Failures++
		m.info.LastError = err.Error()
		m.logger.Warn().Err(err).Msg("タイムラプスのキャプチャに失敗")
	}
}
