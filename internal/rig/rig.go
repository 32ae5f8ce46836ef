// Package rig は可視光・赤外線の2台のカメラと保存処理をまとめて操作する
package rig

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/config"
	"dualsight/internal/logger"
	"dualsight/internal/storage"
	"dualsight/internal/stream"
)

// Options はRigの構成要素
type Options struct {
	Visible    camera.Adapter
	Infrared   camera.ThermalAdapter
	Fs         afero.Fs // nilならOSのファイルシステム
	Config     *config.Config
	ConfigPath string // 空なら設定を保存しない
	Logger     zerolog.Logger
}

// Rig はデバイス操作・プレビュー・キャプチャの窓口
type Rig struct {
	visible     camera.Adapter
	infrared    camera.ThermalAdapter
	sessions    map[camera.Kind]*stream.Session
	storage     *storage.Manager
	coordinator *capture.Coordinator
	validator   *config.Validator
	logger      zerolog.Logger
	configPath  string

	// opMu はデバイスの状態を変える操作を直列化する
	opMu sync.Mutex

	mu      sync.RWMutex
	handles map[camera.Kind]camera.Handle
	cfg     config.Config
}

// New は新しいRigを作成する
func New(opts Options) *Rig {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	r := &Rig{
		visible:    opts.Visible,
		infrared:   opts.Infrared,
		validator:  config.NewValidator(),
		logger:     logger.WithComponent(opts.Logger, "rig"),
		configPath: opts.ConfigPath,
		handles:    make(map[camera.Kind]camera.Handle),
		cfg:        *cfg,
	}

	r.sessions = map[camera.Kind]*stream.Session{
		camera.KindVisible: stream.NewSession(opts.Visible, stream.NewFrameBuffer(camera.KindVisible), cfg.Stream.StaleAfter,
			logger.WithComponent(opts.Logger, "stream")),
		camera.KindInfrared: stream.NewSession(opts.Infrared, stream.NewFrameBuffer(camera.KindInfrared), cfg.Stream.StaleAfter,
			logger.WithComponent(opts.Logger, "stream")),
	}

	r.storage = storage.NewManager(fs, cfg.Store.Quality, logger.WithComponent(opts.Logger, "storage"))
	r.coordinator = capture.NewCoordinator(capture.Sources{
		Visible:     sessionSource{r.sessions[camera.KindVisible]},
		Infrared:    sessionSource{r.sessions[camera.KindInfrared]},
		Temperature: temperatureSource{r},
	}, r.storage, cfg.Capture, logger.WithComponent(opts.Logger, "capture"))

	return r
}

// SensorStatus は1台のセンサーの状態
type SensorStatus struct {
	Kind       camera.Kind        `json:"kind"`
	Handle     string             `json:"handle,omitempty"`
	State      camera.State       `json:"state"`
	Stream     stream.Info        `json:"stream"`
	Resolution *camera.Resolution `json:"resolution,omitempty"`
}

// Status はRig全体の状態
type Status struct {
	Visible         SensorStatus       `json:"visible"`
	Infrared        SensorStatus       `json:"infrared"`
	CaptureInFlight bool               `json:"capture_in_flight"`
	Store           config.StoreConfig `json:"store"`
}

// Status は現在の状態を返す
func (r *Rig) Status() Status {
	r.mu.RLock()
	vh := r.handles[camera.KindVisible]
	ih := r.handles[camera.KindInfrared]
	store := r.cfg.Store
	r.mu.RUnlock()

	st := Status{
		Visible:         r.sensorStatus(r.visible, vh),
		Infrared:        r.sensorStatus(r.infrared, ih),
		CaptureInFlight: r.coordinator.InFlight(),
		Store:           store,
	}
	if !ih.IsZero() {
		if res, err := r.infrared.Resolution(ih); err == nil {
			st.Infrared.Resolution = &res
		}
	}
	return st
}

func (r *Rig) sensorStatus(a camera.Adapter, h camera.Handle) SensorStatus {
	return SensorStatus{
		Kind:   a.Kind(),
		Handle: h.ID,
		State:  a.State(h),
		Stream: r.sessions[a.Kind()].Info(),
	}
}

// Buffer はセンサーのFrameBufferを返す
func (r *Rig) Buffer(kind camera.Kind) (*stream.FrameBuffer, error) {
	s, ok := r.sessions[kind]
	if !ok {
		return nil, camera.NewOpError(camera.ErrInvalidParameter, kind, "buffer", fmt.Errorf("未知のセンサー: %q", kind))
	}
	return s.Buffer(), nil
}

// Shutdown は配信を止めて全てのデバイスを解放する
func (r *Rig) Shutdown(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	var errs []error
	for kind, s := range r.sessions {
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s の配信停止に失敗: %w", kind, err))
		}
	}
	if err := r.visible.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := r.infrared.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	r.mu.Lock()
	r.handles = make(map[camera.Kind]camera.Handle)
	r.mu.Unlock()

	if len(errs) > 0 {
		r.logger.Error().Err(errors.Join(errs...)).Msg("一部のデバイスの解放に失敗")
		return errors.Join(errs...)
	}
	r.logger.Info().Msg("全てのデバイスを解放しました")
	return nil
}

func (r *Rig) handle(kind camera.Kind) camera.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handles[kind]
}

func (r *Rig) setHandle(kind camera.Kind, h camera.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.IsZero() {
		delete(r.handles, kind)
		return
	}
	r.handles[kind] = h
}

// requireHandle は開いているハンドルを返す。なければErrInvalidState
func (r *Rig) requireHandle(kind camera.Kind, op string) (camera.Handle, error) {
	h := r.handle(kind)
	if h.IsZero() {
		return camera.Handle{}, camera.NewOpError(camera.ErrInvalidState, kind, op, errors.New("デバイスが開かれていません"))
	}
	return h, nil
}

func (r *Rig) adapter(kind camera.Kind) (camera.Adapter, error) {
	switch kind {
	case camera.KindVisible:
		return r.visible, nil
	case camera.KindInfrared:
		return r.infrared, nil
	}
	return nil, camera.NewOpError(camera.ErrInvalidParameter, kind, "adapter", fmt.Errorf("未知のセンサー: %q", kind))
}
