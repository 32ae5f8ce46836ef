package rig

import (
	"context"

	"dualsight/internal/camera"
	"dualsight/internal/capture"
	"dualsight/internal/config"
	"dualsight/internal/storage"
	"dualsight/internal/stream"
)

// CaptureOptions はキャプチャ要求の上書き項目
type CaptureOptions struct {
	Dir   string         `json:"dir"`   // 空なら設定の保存先
	Flags *storage.Flags `json:"flags"` // nilなら設定の保存フラグ
}

// Capture は有効なセンサーからスナップショットを取得して保存する
func (r *Rig) Capture(ctx context.Context, opts CaptureOptions) (*capture.Result, error) {
	r.mu.RLock()
	store := r.cfg.Store
	r.mu.RUnlock()

	req := capture.Request{
		Dir: store.Path,
		Flags: storage.Flags{
			SaveVisible:     store.SaveVisible.Value,
			SaveInfrared:    store.SaveInfrared.Value,
			SaveTemperature: store.SaveTemperature.Value,
		},
	}
	if opts.Dir != "" {
		req.Dir, _ = r.ResolveDir(opts.Dir)
	}
	if opts.Flags != nil {
		req.Flags = *opts.Flags
	}

	return r.coordinator.Capture(ctx, req)
}

// ResolveDir はリクエストで指定された保存先を検証する
//
// 空なら設定の保存先を返す。使えない値は設定の保存先に戻し、その内容を返す。
func (r *Rig) ResolveDir(dir string) (string, []config.Notice) {
	r.mu.RLock()
	fallback := r.cfg.Store.Path
	r.mu.RUnlock()

	if dir == "" {
		return fallback, nil
	}
	resolved, notices := r.validator.ApplyDir("dir", dir, fallback)
	r.logNotices(notices)
	return resolved, notices
}

// sessionSource はセッションのバッファをキャプチャの入力にする
type sessionSource struct {
	session *stream.Session
}

func (s sessionSource) Active() bool { return s.session.Active() }

func (s sessionSource) Latest() (camera.Frame, bool) { return s.session.Buffer().Latest() }

// temperatureSource は配信中の赤外線カメラから温度行列を読む
type temperatureSource struct {
	rig *Rig
}

func (t temperatureSource) Active() bool {
	return t.rig.sessions[camera.KindInfrared].Active()
}

func (t temperatureSource) ReadTemperatureMatrix() (camera.TemperatureMatrix, error) {
	h, err := t.rig.requireHandle(camera.KindInfrared, "read_temperature")
	if err != nil {
		return camera.TemperatureMatrix{}, err
	}
	return t.rig.infrared.ReadTemperatureMatrix(h)
}

func (t temperatureSource) Resolution() (camera.Resolution, error) {
	h, err := t.rig.requireHandle(camera.KindInfrared, "resolution")
	if err != nil {
		return camera.Resolution{}, err
	}
	return t.rig.infrared.Resolution(h)
}
