package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// visibleDevice は開かれた可視光デバイス1台分の状態
type visibleDevice struct {
	handle Handle
	vendor VendorHandle
	desc   DeviceDescriptor
	state  State
	seq    atomic.Uint64
}

// VisibleAdapter は可視光カメラSDKをAdapterとして提供する
type VisibleAdapter struct {
	sdk    VisibleSDK
	logger zerolog.Logger

	mu      sync.Mutex
	devices map[string]*visibleDevice
}

var _ Adapter = (*VisibleAdapter)(nil)

// NewVisibleAdapter は新しいVisibleAdapterを作成する
func NewVisibleAdapter(sdk VisibleSDK, logger zerolog.Logger) *VisibleAdapter {
	return &VisibleAdapter{
		sdk:     sdk,
		logger:  logger.With().Str("sensor", string(KindVisible)).Logger(),
		devices: make(map[string]*visibleDevice),
	}
}

// Kind はKindVisibleを返す
func (a *VisibleAdapter) Kind() Kind { return KindVisible }

// Enumerate は接続されている可視光カメラを列挙する
func (a *VisibleAdapter) Enumerate(ctx context.Context) ([]DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := a.sdk.EnumDevices()
	if err != nil {
		return nil, a.fail(ErrDeviceNotFound, "enumerate", err)
	}

	descs := make([]DeviceDescriptor, 0, len(infos))
	for i, info := range infos {
		descs = append(descs, describeVisible(i, info))
	}
	return descs, nil
}

// describeVisible はSDKの列挙結果を記述子に変換する
func describeVisible(index int, info VisibleDeviceInfo) DeviceDescriptor {
	label := info.UserName
	if label == "" {
		label = info.Model
	}
	name := fmt.Sprintf("[%d]%s: %s", index, info.Transport, label)
	if info.Address != "" {
		name += fmt.Sprintf(" (%s)", info.Address)
	}

	id := info.Serial
	if id == "" {
		id = fmt.Sprintf("visible-%d", index)
	}

	return DeviceDescriptor{
		ID:        id,
		Kind:      KindVisible,
		Index:     index,
		Name:      name,
		Model:     info.Model,
		Serial:    info.Serial,
		Transport: info.Transport,
		Address:   info.Address,
	}
}

// Open はデバイスを開き、トリガーモードをオフにして連続取得モードにする
func (a *VisibleAdapter) Open(ctx context.Context, desc DeviceDescriptor) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, d := range a.devices {
		if d.desc.Index == desc.Index {
			return Handle{}, a.fail(ErrInvalidState, "open", fmt.Errorf("デバイス %d は既に開かれています", desc.Index))
		}
	}

	infos, err := a.sdk.EnumDevices()
	if err != nil {
		return Handle{}, a.fail(ErrDeviceNotFound, "open", err)
	}
	if desc.Index < 0 || desc.Index >= len(infos) {
		return Handle{}, a.fail(ErrDeviceNotFound, "open", fmt.Errorf("インデックス %d のデバイスはありません", desc.Index))
	}

	vh, err := a.sdk.OpenDevice(desc.Index)
	if err != nil {
		return Handle{}, a.fail(ErrDeviceNotFound, "open", err)
	}

	if err := a.sdk.SetTriggerMode(vh, false); err != nil {
		_ = a.sdk.CloseDevice(vh)
		return Handle{}, a.fail(ErrDeviceFailure, "open", fmt.Errorf("トリガーモードの設定に失敗: %w", err))
	}

	h := Handle{ID: uuid.NewString(), Kind: KindVisible}
	a.devices[h.ID] = &visibleDevice{
		handle: h,
		vendor: vh,
		desc:   describeVisible(desc.Index, infos[desc.Index]),
		state:  StateOpened,
	}

	a.logger.Info().Str("handle", h.ID).Int("index", desc.Index).Msg("可視光カメラを開きました")
	return h, nil
}

// Close はデバイスを閉じる。配信中なら先に停止する
func (a *VisibleAdapter) Close(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok {
		return a.fail(ErrInvalidState, "close", fmt.Errorf("ハンドル %s は開かれていません", h.ID))
	}
	return a.closeLocked(d)
}

// closeLocked はa.muを保持した状態で呼ぶこと
//
// SDKが失敗してもハンドルは必ず解放する。
func (a *VisibleAdapter) closeLocked(d *visibleDevice) error {
	var errs []error

	if d.state == StateStreaming {
		if err := a.sdk.StopGrabbing(d.vendor); err != nil {
			errs = append(errs, fmt.Errorf("取得停止に失敗: %w", err))
		}
		d.state = StateOpened
	}

	if err := a.sdk.CloseDevice(d.vendor); err != nil {
		errs = append(errs, fmt.Errorf("デバイスのクローズに失敗: %w", err))
	}

	d.state = StateClosed
	delete(a.devices, d.handle.ID)

	if len(errs) > 0 {
		return a.fail(ErrDeviceFailure, "close", errors.Join(errs...))
	}

	a.logger.Info().Str("handle", d.handle.ID).Msg("可視光カメラを閉じました")
	return nil
}

// State はハンドルの状態を返す。不明なハンドルはStateClosed
func (a *VisibleAdapter) State(h Handle) State {
	a.mu.Lock()
	defer a.mu.Unlock()

	if d, ok := a.devices[h.ID]; ok {
		return d.state
	}
	return StateClosed
}

// IsStreaming は配信中かを返す
func (a *VisibleAdapter) IsStreaming(h Handle) bool {
	return a.State(h) == StateStreaming
}

// SetParameter は露光・ゲイン・フレームレートを設定する
func (a *VisibleAdapter) SetParameter(h Handle, name string, value float64) error {
	if err := ValidateParameter(KindVisible, name, value); err != nil {
		return a.fail(ErrInvalidParameter, "set_parameter", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.openedLocked(h, "set_parameter")
	if err != nil {
		return err
	}

	if err := a.sdk.SetFloatValue(d.vendor, visibleNodes[name], value); err != nil {
		return a.fail(ErrInvalidParameter, "set_parameter", fmt.Errorf("%s の設定に失敗: %w", name, err))
	}

	a.logger.Debug().Str("handle", h.ID).Str("param", name).Float64("value", value).Msg("パラメータを設定しました")
	return nil
}

// GetParameter はパラメータの現在値を取得する
func (a *VisibleAdapter) GetParameter(h Handle, name string) (float64, error) {
	node, ok := visibleNodes[name]
	if !ok {
		return 0, a.fail(ErrInvalidParameter, "get_parameter", fmt.Errorf("未知のパラメータ: %q", name))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.openedLocked(h, "get_parameter")
	if err != nil {
		return 0, err
	}

	v, err := a.sdk.GetFloatValue(d.vendor, node)
	if err != nil {
		return 0, a.fail(ErrDeviceFailure, "get_parameter", fmt.Errorf("%s の取得に失敗: %w", name, err))
	}
	return v, nil
}

// StartStream は連続取得を開始する
func (a *VisibleAdapter) StartStream(h Handle, sink FrameSink) error {
	if sink == nil {
		return a.fail(ErrInvalidParameter, "start_stream", errors.New("sinkがnilです"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || d.state != StateOpened {
		return a.fail(ErrInvalidState, "start_stream", fmt.Errorf("状態 %s からは開始できません", a.stateLocked(h)))
	}

	if err := a.sdk.StartGrabbing(d.vendor, newFrameCallback(KindVisible, sink, &d.seq)); err != nil {
		return a.fail(ErrStreamStartFailed, "start_stream", err)
	}

	d.state = StateStreaming
	a.logger.Info().Str("handle", h.ID).Msg("取得を開始しました")
	return nil
}

// StopStream は連続取得を停止する。配信中でなければ何もしない
func (a *VisibleAdapter) StopStream(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || d.state != StateStreaming {
		return nil
	}

	err := a.sdk.StopGrabbing(d.vendor)
	d.state = StateOpened
	if err != nil {
		return a.fail(ErrDeviceFailure, "stop_stream", err)
	}

	a.logger.Info().Str("handle", h.ID).Msg("取得を停止しました")
	return nil
}

// Shutdown は開いている全てのデバイスを閉じる
func (a *VisibleAdapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, d := range a.devices {
		if err := a.closeLocked(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *VisibleAdapter) openedLocked(h Handle, op string) (*visibleDevice, error) {
	d, ok := a.devices[h.ID]
	if !ok {
		return nil, a.fail(ErrInvalidState, op, fmt.Errorf("ハンドル %s は開かれていません", h.ID))
	}
	return d, nil
}

func (a *VisibleAdapter) stateLocked(h Handle) State {
	if d, ok := a.devices[h.ID]; ok {
		return d.state
	}
	return StateClosed
}

func (a *VisibleAdapter) fail(kind ErrorKind, op string, err error) error {
	return reportError(a.logger, kind, KindVisible, op, err)
}
