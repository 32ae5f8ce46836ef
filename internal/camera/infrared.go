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

// DefaultInfraredResolution は基本情報が取得できない場合の解像度
var DefaultInfraredResolution = Resolution{Width: 512, Height: 384}

// infraredDevice はログイン中の赤外線カメラ1台分の状態
type infraredDevice struct {
	handle Handle
	vendor VendorHandle
	login  LoginParams
	info   GeneralInfo
	res    Resolution
	state  State
	seq    atomic.Uint64
}

// InfraredAdapter は赤外線カメラSDKをThermalAdapterとして提供する
type InfraredAdapter struct {
	sdk    InfraredSDK
	logger zerolog.Logger

	mu      sync.Mutex
	devices map[string]*infraredDevice
}

var _ ThermalAdapter = (*InfraredAdapter)(nil)

// NewInfraredAdapter は新しいInfraredAdapterを作成する
func NewInfraredAdapter(sdk InfraredSDK, logger zerolog.Logger) *InfraredAdapter {
	return &InfraredAdapter{
		sdk:     sdk,
		logger:  logger.With().Str("sensor", string(KindInfrared)).Logger(),
		devices: make(map[string]*infraredDevice),
	}
}

// Kind はKindInfraredを返す
func (a *InfraredAdapter) Kind() Kind { return KindInfrared }

// Enumerate はログイン済みのカメラを列挙する
//
// ネットワークカメラはログインするまで所在が分からないため、列挙対象はログイン済みのものに限る。
func (a *InfraredAdapter) Enumerate(ctx context.Context) ([]DeviceDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	descs := make([]DeviceDescriptor, 0, len(a.devices))
	for _, d := range a.devices {
		if d.state == StateLoggingIn {
			continue
		}
		descs = append(descs, d.describe())
	}
	return descs, nil
}

func (d *infraredDevice) describe() DeviceDescriptor {
	addr := fmt.Sprintf("%s:%d", d.login.Server, d.login.Port)
	name := d.info.Model
	if name == "" {
		name = "IR"
	}
	return DeviceDescriptor{
		ID:        d.handle.ID,
		Kind:      KindInfrared,
		Name:      fmt.Sprintf("%s (%s)", name, addr),
		Model:     d.info.Model,
		Serial:    d.info.Serial,
		Transport: "network",
		Address:   addr,
	}
}

// Login はカメラにログインし、解像度などの基本情報を取得する
//
// SDK呼び出しの間はロックを保持せず、その間の状態はStateLoggingInとなる。
func (a *InfraredAdapter) Login(ctx context.Context, p LoginParams) (Handle, error) {
	if p.Server == "" || p.Port < 1 || p.Port > 65535 {
		return Handle{}, a.fail(ErrInvalidParameter, "login", fmt.Errorf("接続先が不正です: %q:%d", p.Server, p.Port))
	}

	a.mu.Lock()
	for _, d := range a.devices {
		if d.login.Server == p.Server && d.login.Port == p.Port {
			a.mu.Unlock()
			return Handle{}, a.fail(ErrInvalidState, "login", fmt.Errorf("%s:%d には既にログインしています", p.Server, p.Port))
		}
	}

	vh, err := a.sdk.InitDevice()
	if err != nil {
		a.mu.Unlock()
		return Handle{}, a.fail(ErrDeviceFailure, "login", fmt.Errorf("ハンドルの初期化に失敗: %w", err))
	}

	h := Handle{ID: uuid.NewString(), Kind: KindInfrared}
	d := &infraredDevice{handle: h, vendor: vh, login: p, state: StateLoggingIn}
	a.devices[h.ID] = d
	a.mu.Unlock()

	info, err := a.authenticate(ctx, d)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.sdk.UninitDevice(vh)
		delete(a.devices, h.ID)
		return Handle{}, a.fail(ErrLoginFailed, "login", err)
	}

	d.info = info
	d.res = Resolution{Width: info.Width, Height: info.Height}
	if d.res.Pixels() <= 0 {
		a.logger.Warn().Str("handle", h.ID).Msg("解像度が取得できないためデフォルト値を使用します")
		d.res = DefaultInfraredResolution
	}
	d.state = StateLoggedIn

	a.logger.Info().
		Str("handle", h.ID).
		Str("server", p.Server).
		Int("port", p.Port).
		Int("width", d.res.Width).
		Int("height", d.res.Height).
		Msg("赤外線カメラにログインしました")
	return h, nil
}

// authenticate はログインと基本情報の取得を行う
func (a *InfraredAdapter) authenticate(ctx context.Context, d *infraredDevice) (GeneralInfo, error) {
	if err := ctx.Err(); err != nil {
		return GeneralInfo{}, err
	}

	p := d.login
	if err := a.sdk.Login(d.vendor, p.Server, p.User, p.Password, p.Port); err != nil {
		return GeneralInfo{}, err
	}

	info, err := a.sdk.GetGeneralInfo(d.vendor)
	if err != nil {
		a.logger.Warn().Err(err).Msg("基本情報の取得に失敗")
		info = GeneralInfo{}
	}

	if err := ctx.Err(); err != nil {
		_ = a.sdk.Logout(d.vendor)
		return GeneralInfo{}, err
	}
	return info, nil
}

// Logout はログアウトしてハンドルを解放する。開いていれば先に閉じる
func (a *InfraredAdapter) Logout(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || d.state == StateLoggingIn {
		return a.fail(ErrInvalidState, "logout", fmt.Errorf("状態 %s からはログアウトできません", a.stateLocked(h)))
	}
	return a.logoutLocked(d)
}

// logoutLocked はa.muを保持した状態で呼ぶこと
func (a *InfraredAdapter) logoutLocked(d *infraredDevice) error {
	var errs []error

	if d.state == StateStreaming || d.state == StateOpened {
		if err := a.closeLocked(d); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.sdk.Logout(d.vendor); err != nil {
		errs = append(errs, fmt.Errorf("ログアウトに失敗: %w", err))
	}
	a.sdk.UninitDevice(d.vendor)

	d.state = StateLoggedOut
	delete(a.devices, d.handle.ID)

	if len(errs) > 0 {
		return a.fail(ErrDeviceFailure, "logout", errors.Join(errs...))
	}

	a.logger.Info().Str("handle", d.handle.ID).Msg("赤外線カメラからログアウトしました")
	return nil
}

// Open はログイン済みのカメラを開く
//
// desc.IDはLoginが返したハンドルのIDであること。
func (a *InfraredAdapter) Open(ctx context.Context, desc DeviceDescriptor) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[desc.ID]
	if !ok {
		return Handle{}, a.fail(ErrDeviceNotFound, "open", fmt.Errorf("ログイン済みのデバイス %s はありません", desc.ID))
	}
	if d.state != StateLoggedIn {
		return Handle{}, a.fail(ErrInvalidState, "open", fmt.Errorf("状態 %s からは開けません", d.state))
	}

	// 応答確認を兼ねて測温パラメータを読む
	if _, err := a.sdk.GetThermometryParam(d.vendor); err != nil {
		return Handle{}, a.fail(ErrDeviceFailure, "open", err)
	}

	d.state = StateOpened
	return d.handle, nil
}

// Close は映像を閉じてStateLoggedInに戻す
func (a *InfraredAdapter) Close(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || (d.state != StateOpened && d.state != StateStreaming) {
		return a.fail(ErrInvalidState, "close", fmt.Errorf("状態 %s からは閉じられません", a.stateLocked(h)))
	}
	return a.closeLocked(d)
}

func (a *InfraredAdapter) closeLocked(d *infraredDevice) error {
	var err error
	if d.state == StateStreaming {
		err = a.closeStreamLocked(d)
	}
	d.state = StateLoggedIn
	return err
}

// State はハンドルの状態を返す。不明なハンドルはStateLoggedOut
func (a *InfraredAdapter) State(h Handle) State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked(h)
}

func (a *InfraredAdapter) stateLocked(h Handle) State {
	if d, ok := a.devices[h.ID]; ok {
		return d.state
	}
	return StateLoggedOut
}

// IsStreaming は配信中かを返す
func (a *InfraredAdapter) IsStreaming(h Handle) bool {
	return a.State(h) == StateStreaming
}

// StartStream は赤外線映像を開く
func (a *InfraredAdapter) StartStream(h Handle, sink FrameSink) error {
	if sink == nil {
		return a.fail(ErrInvalidParameter, "start_stream", errors.New("sinkがnilです"))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || d.state != StateOpened {
		return a.fail(ErrInvalidState, "start_stream", fmt.Errorf("状態 %s からは開始できません", a.stateLocked(h)))
	}

	if err := a.sdk.OpenIrVideo(d.vendor, newFrameCallback(KindInfrared, sink, &d.seq)); err != nil {
		return a.fail(ErrStreamStartFailed, "start_stream", err)
	}

	d.state = StateStreaming
	a.logger.Info().Str("handle", h.ID).Msg("赤外線映像を開きました")
	return nil
}

// StopStream は赤外線映像を閉じる。配信中でなければ何もしない
func (a *InfraredAdapter) StopStream(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.devices[h.ID]
	if !ok || d.state != StateStreaming {
		return nil
	}
	return a.closeStreamLocked(d)
}

func (a *InfraredAdapter) closeStreamLocked(d *infraredDevice) error {
	err := a.sdk.CloseIrVideo(d.vendor)
	d.state = StateOpened
	if err != nil {
		return a.fail(ErrDeviceFailure, "stop_stream", err)
	}
	a.logger.Info().Str("handle", d.handle.ID).Msg("赤外線映像を閉じました")
	return nil
}

// SetParameter はpaletteまたはpalette_enabledを設定する
func (a *InfraredAdapter) SetParameter(h Handle, name string, value float64) error {
	if err := ValidateParameter(KindInfrared, name, value); err != nil {
		return a.fail(ErrInvalidParameter, "set_parameter", err)
	}

	switch name {
	case ParamPalette:
		return a.SetPaletteTable(h, int(value))
	default:
		return a.SetPaletteEnabled(h, value == 1)
	}
}

// GetParameter はpaletteまたはpalette_enabledを取得する
func (a *InfraredAdapter) GetParameter(h Handle, name string) (float64, error) {
	if _, ok := RangeOf(KindInfrared, name); !ok {
		return 0, a.fail(ErrInvalidParameter, "get_parameter", fmt.Errorf("未知のパラメータ: %q", name))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.loggedInLocked(h, "get_parameter")
	if err != nil {
		return 0, err
	}

	p, err := a.sdk.GetThermometryParam(d.vendor)
	if err != nil {
		return 0, a.fail(ErrDeviceFailure, "get_parameter", err)
	}

	if name == ParamPalette {
		return float64(p.ColorBar), nil
	}
	if p.ColorShow {
		return 1, nil
	}
	return 0, nil
}

// SetPaletteEnabled は疑似カラー表示を切り替える
func (a *InfraredAdapter) SetPaletteEnabled(h Handle, enabled bool) error {
	return a.updateThermometry(h, "set_palette_enabled", func(p *ThermometryParam) {
		p.ColorShow = enabled
	})
}

// SetPaletteTable はカラーバーを切り替える
func (a *InfraredAdapter) SetPaletteTable(h Handle, id int) error {
	if err := ValidateParameter(KindInfrared, ParamPalette, float64(id)); err != nil {
		return a.fail(ErrInvalidParameter, "set_palette_table", err)
	}
	return a.updateThermometry(h, "set_palette_table", func(p *ThermometryParam) {
		p.ColorBar = id
	})
}

// updateThermometry は測温パラメータを読み出し、変更して書き戻す
func (a *InfraredAdapter) updateThermometry(h Handle, op string, mutate func(*ThermometryParam)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.loggedInLocked(h, op)
	if err != nil {
		return err
	}

	p, err := a.sdk.GetThermometryParam(d.vendor)
	if err != nil {
		return a.fail(ErrDeviceFailure, op, fmt.Errorf("測温パラメータの取得に失敗: %w", err))
	}
	mutate(&p)
	if err := a.sdk.SetThermometryParam(d.vendor, p); err != nil {
		return a.fail(ErrDeviceFailure, op, fmt.Errorf("測温パラメータの設定に失敗: %w", err))
	}
	return nil
}

// TriggerAutofocus はオートフォーカスを実行する
func (a *InfraredAdapter) TriggerAutofocus(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.loggedInLocked(h, "autofocus")
	if err != nil {
		return err
	}
	if err := a.sdk.SetFocus(d.vendor, FocusAuto, 0); err != nil {
		return a.fail(ErrDeviceFailure, "autofocus", err)
	}
	return nil
}

// DoShutter はシャッター補正を実行する
func (a *InfraredAdapter) DoShutter(h Handle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.loggedInLocked(h, "shutter")
	if err != nil {
		return err
	}
	if err := a.sdk.DoShutter(d.vendor); err != nil {
		return a.fail(ErrDeviceFailure, "shutter", err)
	}
	return nil
}

// ReadTemperatureMatrix は温度行列を読み出す
//
// 値の数が解像度と一致しない場合はErrResolutionMismatchを返し、切り詰めや補完はしない。
func (a *InfraredAdapter) ReadTemperatureMatrix(h Handle) (TemperatureMatrix, error) {
	a.mu.Lock()
	d, err := a.loggedInLocked(h, "read_temperature")
	if err != nil {
		a.mu.Unlock()
		return TemperatureMatrix{}, err
	}
	vendor, res := d.vendor, d.res
	a.mu.Unlock()

	values, err := a.sdk.GetImageTemps(vendor, res.Pixels())
	if err != nil {
		return TemperatureMatrix{}, a.fail(ErrDeviceFailure, "read_temperature", err)
	}

	m := TemperatureMatrix{Width: res.Width, Height: res.Height, Values: values}
	if err := m.CheckResolution(res); err != nil {
		return TemperatureMatrix{}, a.fail(ErrResolutionMismatch, "read_temperature", err)
	}
	return m, nil
}

// Resolution はログイン時に取得した解像度を返す
func (a *InfraredAdapter) Resolution(h Handle) (Resolution, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, err := a.loggedInLocked(h, "resolution")
	if err != nil {
		return Resolution{}, err
	}
	return d.res, nil
}

// Shutdown は全てのカメラからログアウトする
func (a *InfraredAdapter) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for _, d := range a.devices {
		if d.state == StateLoggingIn {
			continue
		}
		if err := a.logoutLocked(d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// loggedInLocked はログイン済み（Opened/Streamingを含む）のデバイスを返す
func (a *InfraredAdapter) loggedInLocked(h Handle, op string) (*infraredDevice, error) {
	d, ok := a.devices[h.ID]
	if !ok || d.state == StateLoggingIn {
		return nil, a.fail(ErrInvalidState, op, fmt.Errorf("状態 %s では実行できません", a.stateLocked(h)))
	}
	return d, nil
}

func (a *InfraredAdapter) fail(kind ErrorKind, op string, err error) error {
	return reportError(a.logger, kind, KindInfrared, op, err)
}
