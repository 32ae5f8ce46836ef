package rig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dualsight/internal/camera"
	"dualsight/internal/config"
)

// Devices は両センサーの接続可能なデバイスを列挙する
func (r *Rig) Devices(ctx context.Context) ([]camera.DeviceDescriptor, error) {
	visible, vErr := r.visible.Enumerate(ctx)
	infrared, iErr := r.infrared.Enumerate(ctx)

	descs := make([]camera.DeviceDescriptor, 0, len(visible)+len(infrared))
	descs = append(descs, visible...)
	descs = append(descs, infrared...)
	return descs, errors.Join(vErr, iErr)
}

// OpenVisible は可視光カメラを開き、保存済みのパラメータを適用する
func (r *Rig) OpenVisible(ctx context.Context, index int) (camera.Handle, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if !r.handle(camera.KindVisible).IsZero() {
		return camera.Handle{}, camera.NewOpError(camera.ErrInvalidState, camera.KindVisible, "open", errors.New("既に開いています"))
	}

	descs, err := r.visible.Enumerate(ctx)
	if err != nil {
		return camera.Handle{}, err
	}
	var desc *camera.DeviceDescriptor
	for i := range descs {
		if descs[i].Index == index {
			desc = &descs[i]
			break
		}
	}
	if desc == nil {
		return camera.Handle{}, camera.NewOpError(camera.ErrDeviceNotFound, camera.KindVisible, "open", fmt.Errorf("インデックス %d のデバイスがありません", index))
	}

	h, err := r.visible.Open(ctx, *desc)
	if err != nil {
		return camera.Handle{}, err
	}
	r.setHandle(camera.KindVisible, h)

	r.mu.Lock()
	r.cfg.Visible.DeviceIndex = index
	params := r.cfg.Visible
	r.mu.Unlock()

	for name, v := range map[string]float64{
		camera.ParamExposure:  params.Exposure,
		camera.ParamGain:      params.Gain,
		camera.ParamFrameRate: params.FrameRate,
	} {
		if err := r.visible.SetParameter(h, name, v); err != nil {
			r.logger.Warn().Err(err).Str("param", name).Msg("保存済みパラメータを適用できません")
		}
	}

	r.logger.Info().Str("handle", h.ID).Str("device", desc.Name).Msg("可視光カメラを開きました")
	return h, nil
}

// CloseVisible は可視光カメラを閉じる。配信中なら先に停止する
func (r *Rig) CloseVisible(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	h, err := r.requireHandle(camera.KindVisible, "close")
	if err != nil {
		return err
	}

	stopErr := r.sessions[camera.KindVisible].Stop(ctx)
	closeErr := r.visible.Close(h)
	// アダプター側ではハンドルは常に破棄される
	r.setHandle(camera.KindVisible, camera.Handle{})

	return errors.Join(stopErr, closeErr)
}

// LoginRequest は赤外線カメラへのログイン要求。空の項目は保存済みの値を使う
type LoginRequest struct {
	Server   string `json:"server"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// LoginInfrared は赤外線カメラにログインしてデバイスを開く
//
// 入力は Validator を通し、不正な項目は既定値に戻した上でその内容を返す。
func (r *Rig) LoginInfrared(ctx context.Context, req LoginRequest) (camera.Handle, []config.Notice, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if !r.handle(camera.KindInfrared).IsZero() {
		return camera.Handle{}, nil, camera.NewOpError(camera.ErrInvalidState, camera.KindInfrared, "login", errors.New("既にログインしています"))
	}

	r.mu.RLock()
	ic := r.cfg.Infrared
	r.mu.RUnlock()

	if req.Server != "" {
		ic.Server = req.Server
	}
	if req.Port != 0 {
		ic.Port = req.Port
	}
	if req.User != "" {
		ic.User = req.User
	}
	if req.Password != "" {
		ic.Password = req.Password
	}
	notices := r.validator.ApplyInfrared(&ic)
	r.logNotices(notices)

	h, err := r.infrared.Login(ctx, camera.LoginParams{Server: ic.Server, Port: ic.Port, User: ic.User, Password: ic.Password})
	if err != nil {
		return camera.Handle{}, notices, err
	}

	if _, err := r.infrared.Open(ctx, camera.DeviceDescriptor{ID: h.ID, Kind: camera.KindInfrared}); err != nil {
		if logoutErr := r.infrared.Logout(h); logoutErr != nil {
			r.logger.Warn().Err(logoutErr).Msg("ログアウトに失敗")
		}
		return camera.Handle{}, notices, err
	}
	r.setHandle(camera.KindInfrared, h)

	if err := r.infrared.SetPaletteTable(h, ic.Palette); err != nil {
		r.logger.Warn().Err(err).Int("palette", ic.Palette).Msg("保存済みカラーバーを適用できません")
	}

	r.mu.Lock()
	r.cfg.Infrared = ic
	r.mu.Unlock()
	r.saveConfig()

	return h, notices, nil
}

// LogoutInfrared は赤外線カメラからログアウトする。配信中なら先に停止する
func (r *Rig) LogoutInfrared(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	h, err := r.requireHandle(camera.KindInfrared, "logout")
	if err != nil {
		return err
	}

	stopErr := r.sessions[camera.KindInfrared].Stop(ctx)
	logoutErr := r.infrared.Logout(h)
	r.setHandle(camera.KindInfrared, camera.Handle{})

	return errors.Join(stopErr, logoutErr)
}

// StartPreview はセンサーの配信を開始する
func (r *Rig) StartPreview(ctx context.Context, kind camera.Kind) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if _, err := r.adapter(kind); err != nil {
		return err
	}
	h, err := r.requireHandle(kind, "start_stream")
	if err != nil {
		return err
	}
	if kind == camera.KindVisible {
		r.mu.RLock()
		fps := r.cfg.Visible.FrameRate
		r.mu.RUnlock()
		r.sessions[kind].SetFrameInterval(frameInterval(fps))
	}
	return r.sessions[kind].Start(ctx, h, nil)
}

// frameInterval はフレームレートから1フレームの間隔を求める
func frameInterval(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}

// StopPreview はセンサーの配信を停止する。開始していなければ何もしない
func (r *Rig) StopPreview(ctx context.Context, kind camera.Kind) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	s, ok := r.sessions[kind]
	if !ok {
		return camera.NewOpError(camera.ErrInvalidParameter, kind, "stop_stream", fmt.Errorf("未知のセンサー: %q", kind))
	}
	return s.Stop(ctx)
}

// SetParameter はパラメータを設定し、成功すれば設定にも反映する
func (r *Rig) SetParameter(kind camera.Kind, name string, value float64) error {
	a, err := r.adapter(kind)
	if err != nil {
		return err
	}
	h, err := r.requireHandle(kind, "set_parameter")
	if err != nil {
		return err
	}
	if err := a.SetParameter(h, name, value); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	switch name {
	case camera.ParamExposure:
		r.cfg.Visible.Exposure = value
	case camera.ParamGain:
		r.cfg.Visible.Gain = value
	case camera.ParamFrameRate:
		r.cfg.Visible.FrameRate = value
		r.sessions[camera.KindVisible].SetFrameInterval(frameInterval(value))
	case camera.ParamPalette:
		r.cfg.Infrared.Palette = int(value)
	}
	return nil
}

// GetParameter はパラメータの現在値を返す
func (r *Rig) GetParameter(kind camera.Kind, name string) (float64, error) {
	a, err := r.adapter(kind)
	if err != nil {
		return 0, err
	}
	h, err := r.requireHandle(kind, "get_parameter")
	if err != nil {
		return 0, err
	}
	return a.GetParameter(h, name)
}

// SetPalette は疑似カラー表示とカラーバーを設定する。nilの項目は変更しない
func (r *Rig) SetPalette(enabled *bool, id *int) error {
	h, err := r.requireHandle(camera.KindInfrared, "set_palette")
	if err != nil {
		return err
	}

	if id != nil {
		if err := r.infrared.SetPaletteTable(h, *id); err != nil {
			return err
		}
		r.mu.Lock()
		r.cfg.Infrared.Palette = *id
		r.mu.Unlock()
	}
	if enabled != nil {
		if err := r.infrared.SetPaletteEnabled(h, *enabled); err != nil {
			return err
		}
	}
	return nil
}

// Autofocus は赤外線カメラのオートフォーカスを実行する
func (r *Rig) Autofocus() error {
	h, err := r.requireHandle(camera.KindInfrared, "autofocus")
	if err != nil {
		return err
	}
	return r.infrared.TriggerAutofocus(h)
}

// Shutter は赤外線カメラのシャッター補正を実行する
func (r *Rig) Shutter() error {
	h, err := r.requireHandle(camera.KindInfrared, "shutter")
	if err != nil {
		return err
	}
	return r.infrared.DoShutter(h)
}
